// Package ingest asks a generation backend for a new template and stores the
// result as a catalog entry.
//
// The backend answers with a compose template body and a YAML metadata block
// separated by Separator. ParseResponse splits and validates the answer;
// Pipeline ties generation, parsing and persistence together.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/catalog"
	"github.com/fastertools/devlaunch/internal/llm"
	"github.com/fastertools/devlaunch/internal/storage"
)

// Separator divides the template body from the metadata block.
const Separator = "---END_METADATA---"

// SystemPrompt is sent with every generation request.
const SystemPrompt = `You are a DevOps assistant that writes infrastructure templates.

For every request return exactly two parts:

1. A docker-compose Jinja2 template. Use {{ NAME }} placeholders for every value the user must supply.
2. A YAML metadata block describing the template:
name: <short-kebab-case-name>
description: <one line description>
required_inputs:
  - VAR1
  - VAR2
tags:
  - <lower-case technology names, one word each>

Separate the two parts with the marker "` + Separator + `" on its own line.

Return nothing else. Do not explain. Do not use Markdown, code fences or horizontal rules. Plain text only.`

// Distinct ingestion failures. Callers match them with errors.Is.
var (
	ErrMissingSeparator   = errors.New("missing metadata separator")
	ErrInvalidMetadata    = errors.New("invalid metadata")
	ErrEmptyBody          = errors.New("empty template body")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

func ingestionError(sentinel, cause error) error {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return apperr.Wrap(apperr.KindIngestion, "ingest", "", err)
}

// BackendUnavailable wraps a backend construction or request failure.
func BackendUnavailable(err error) error {
	return ingestionError(ErrBackendUnavailable, err)
}

// Draft is a parsed backend response.
type Draft struct {
	Body     string
	Metadata catalog.Metadata
}

// ParseResponse splits text on the first Separator. The body is the trimmed
// text before it and the metadata is the trimmed YAML after it.
func ParseResponse(text string) (Draft, error) {
	body, meta, found := strings.Cut(text, Separator)
	if !found {
		return Draft{}, ingestionError(ErrMissingSeparator, nil)
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return Draft{}, ingestionError(ErrEmptyBody, nil)
	}

	m, err := catalog.ParseMetadata([]byte(strings.TrimSpace(meta)))
	if err != nil {
		return Draft{}, ingestionError(ErrInvalidMetadata, err)
	}
	return Draft{Body: body, Metadata: m}, nil
}

// Result describes a persisted entry.
type Result struct {
	Entry catalog.Entry
	// Keys are the storage keys written, body first.
	Keys []string
	// Untagged is set when the backend declared no tags. Such an entry is
	// stored but can never be matched by the resolver.
	Untagged bool
}

// Pipeline generates, parses and persists new templates.
type Pipeline struct {
	backend llm.Backend
	store   storage.Store
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPrefix stores new entries under prefix.
func WithPrefix(prefix string) Option {
	return func(p *Pipeline) {
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		p.prefix = prefix
	}
}

// WithTimeout bounds the backend call.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New creates a pipeline.
func New(backend llm.Backend, store storage.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		backend: backend,
		store:   store,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig builds the backend described by cfg. A backend that cannot
// be built is reported as ErrBackendUnavailable.
func NewFromConfig(cfg llm.Config, store storage.Store, opts ...Option) (*Pipeline, error) {
	backend, err := llm.New(cfg)
	if err != nil {
		return nil, BackendUnavailable(err)
	}
	return New(backend, store, opts...), nil
}

// Ingest asks the backend for a template matching prompt, parses the answer
// and persists it.
func (p *Pipeline) Ingest(ctx context.Context, prompt string) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apperr.Input("ingest", "No prompt provided")
	}

	genCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	p.logger.Info("generating template", "backend", p.backend.Name())
	start := time.Now()
	text, err := p.backend.Generate(genCtx, SystemPrompt, prompt)
	if err != nil {
		return nil, BackendUnavailable(err)
	}
	p.logger.Debug("backend responded", "backend", p.backend.Name(), "duration", time.Since(start), "bytes", len(text))

	draft, err := ParseResponse(text)
	if err != nil {
		return nil, err
	}

	name, err := p.entryName(ctx, draft.Metadata.Name, prompt)
	if err != nil {
		return nil, err
	}
	return p.Persist(ctx, name, draft)
}

// Persist writes the draft's body and metadata under <prefix><name>/.
func (p *Pipeline) Persist(ctx context.Context, name string, draft Draft) (*Result, error) {
	dir := p.prefix + name + "/"
	bodyKey := dir + catalog.BodyFile
	metaKey := dir + catalog.MetadataFile

	meta := draft.Metadata
	meta.Name = name
	metaData, err := meta.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := p.store.Put(ctx, bodyKey, []byte(draft.Body+"\n")); err != nil {
		return nil, err
	}
	if err := p.store.Put(ctx, metaKey, metaData); err != nil {
		return nil, err
	}

	res := &Result{
		Entry:    meta.Entry(metaKey),
		Keys:     []string{bodyKey, metaKey},
		Untagged: len(meta.Tags) == 0,
	}
	if res.Untagged {
		p.logger.Warn("generated template has no tags and will never be matched", "key", metaKey)
	}
	p.logger.Info("stored generated template", "name", name, "key", metaKey)
	return res, nil
}

// entryName picks the declared name, or a slug of the prompt, and appends a
// short random suffix when the name is already taken.
func (p *Pipeline) entryName(ctx context.Context, declared, prompt string) (string, error) {
	name := Slug(declared)
	if name == "" {
		name = Slug(strings.Join(firstWords(prompt, 4), " "))
		if name == "" {
			name = "template"
		}
		return name + "-" + shortID(), nil
	}

	existing, err := p.store.List(ctx, p.prefix+name+"/")
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		name += "-" + shortID()
	}
	return name, nil
}

var (
	wordPattern    = regexp.MustCompile(`\w+`)
	nonSlugPattern = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slug lower-cases s and replaces every run of characters other than ASCII
// letters and digits with a single dash.
func Slug(s string) string {
	return strings.Trim(nonSlugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func firstWords(s string, n int) []string {
	words := wordPattern.FindAllString(strings.ToLower(s), -1)
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func shortID() string {
	return uuid.NewString()[:8]
}
