// Package resolver turns a natural-language prompt into a catalog match and
// the storage keys of the matched template's files.
package resolver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/catalog"
	"github.com/fastertools/devlaunch/internal/storage"
)

// Result is the outcome of a resolution. Matched is nil when no entry's tag
// set equals the prompt's tags.
type Result struct {
	Matched *catalog.Entry `json:"matched"`
	Files   []string       `json:"files"`
	// Tags are the vocabulary tags found in the prompt.
	Tags []string `json:"tags"`
}

// Catalog is a catalog reachable either directly through storage (Service)
// or through a devlaunch server (api.Client).
type Catalog interface {
	Resolve(ctx context.Context, prompt string) (Result, error)
	Catalog(ctx context.Context) (catalog.Index, error)
	Get(ctx context.Context, key string) ([]byte, error)
	// Open streams the object behind key. The caller closes it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Service resolves prompts against the catalog held in a store. It keeps no
// state between calls: every resolution reads a fresh index and vocabulary.
type Service struct {
	store   storage.Store
	timeout time.Duration
	logger  *slog.Logger
}

var _ Catalog = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds each storage call.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a service reading from store.
func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Resolve extracts the prompt's tags, finds the entry whose tag set equals
// them and lists the entry's files. An empty prompt is rejected before any
// storage access.
func (s *Service) Resolve(ctx context.Context, prompt string) (Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return Result{}, apperr.Input("resolve", "No prompt provided")
	}

	vocab, err := s.Vocabulary(ctx)
	if err != nil {
		return Result{}, err
	}
	tags := catalog.ExtractTags(prompt, vocab)

	index, err := s.Catalog(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Files: []string{}, Tags: tags.Sorted()}
	match := catalog.Resolve(tags, index)
	if !match.Found {
		s.logger.Debug("no catalog match", "tags", tags.String())
		return res, nil
	}

	files, err := s.Files(ctx, match.Entry)
	if err != nil {
		return Result{}, err
	}
	entry := match.Entry
	res.Matched = &entry
	res.Files = files
	s.logger.Debug("catalog match", "tags", tags.String(), "location", entry.Location, "files", len(files))
	return res, nil
}

// Files lists the storage keys under entry's prefix.
func (s *Service) Files(ctx context.Context, entry catalog.Entry) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	files, err := s.store.List(ctx, entry.Prefix())
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []string{}
	}
	return files, nil
}

// Catalog loads the index document.
func (s *Service) Catalog(ctx context.Context) (catalog.Index, error) {
	data, err := s.get(ctx, catalog.IndexKey)
	if err != nil {
		return nil, err
	}
	return catalog.DecodeIndex(data)
}

// Vocabulary loads the tag vocabulary document.
func (s *Service) Vocabulary(ctx context.Context) (catalog.Vocabulary, error) {
	data, err := s.get(ctx, catalog.VocabularyKey)
	if err != nil {
		return nil, err
	}
	return catalog.DecodeVocabulary(data)
}

// Get reads a single object by key.
func (s *Service) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, apperr.Input("download", "No key provided")
	}
	return s.get(ctx, key)
}

// Open streams a single object by key. The storage timeout covers the
// whole read and ends when the reader is closed.
func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, apperr.Input("download", "No key provided")
	}
	ctx, cancel := s.withTimeout(ctx)
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelCloser{ReadCloser: rc, cancel: cancel}, nil
}

type cancelCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelCloser) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

func (s *Service) get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	data, err := s.store.Get(ctx, key)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound && (key == catalog.IndexKey || key == catalog.VocabularyKey) {
			return nil, apperr.Wrap(apperr.KindNotFound, "resolve", "catalog has not been indexed", err).
				WithFix("run 'devlaunch index build' against the template store")
		}
		return nil, err
	}
	return data, nil
}
