// Package indexer rebuilds the catalog index and tag vocabulary from the
// template.yaml files held in a store.
package indexer

import (
	"context"
	"log/slog"
	"path"
	"sort"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/catalog"
	"github.com/fastertools/devlaunch/internal/storage"
)

// Skipped records a metadata file left out of the index.
type Skipped struct {
	Key string `json:"key"`
	Err error  `json:"-"`
	// Reason is Err's message, kept for JSON output.
	Reason string `json:"reason"`
}

// Result is the outcome of a build.
type Result struct {
	Index      catalog.Index      `json:"index"`
	Vocabulary catalog.Vocabulary `json:"vocabulary"`
	// Scanned counts the metadata files found.
	Scanned int       `json:"scanned"`
	Skipped []Skipped `json:"skipped"`
}

// Builder scans a store for template metadata.
type Builder struct {
	store  storage.Store
	logger *slog.Logger
	strict bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithStrict also requires name, description and required_inputs.
func WithStrict(strict bool) Option {
	return func(b *Builder) {
		b.strict = strict
	}
}

// New creates a builder.
func New(store storage.Store, opts ...Option) *Builder {
	b := &Builder{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build lists every key in the store, parses each template.yaml and returns
// the entries sorted by location. A file that cannot be parsed or lacks tags
// is skipped and the scan continues.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	keys, err := b.store.List(ctx, "")
	if err != nil {
		return nil, err
	}

	res := &Result{Index: catalog.Index{}, Vocabulary: catalog.NewTagSet(), Skipped: []Skipped{}}
	for _, key := range keys {
		if path.Base(key) != catalog.MetadataFile {
			continue
		}
		res.Scanned++

		entry, err := b.load(ctx, key)
		if err != nil {
			b.logger.Warn("skipping template", "key", key, "error", err)
			res.Skipped = append(res.Skipped, Skipped{Key: key, Err: err, Reason: err.Error()})
			continue
		}
		res.Index = append(res.Index, entry)
		for tag := range entry.Tags {
			res.Vocabulary.Add(tag)
		}
	}

	sort.SliceStable(res.Index, func(i, j int) bool {
		return res.Index[i].Location < res.Index[j].Location
	})
	b.logger.Info("index built", "scanned", res.Scanned, "indexed", len(res.Index), "skipped", len(res.Skipped), "tags", len(res.Vocabulary))
	return res, nil
}

func (b *Builder) load(ctx context.Context, key string) (catalog.Entry, error) {
	data, err := b.store.Get(ctx, key)
	if err != nil {
		return catalog.Entry{}, err
	}
	m, err := catalog.ParseMetadata(data)
	if err != nil {
		return catalog.Entry{}, err
	}
	if !m.HasTags {
		return catalog.Entry{}, apperr.Format("index.build", "missing tags in %s", key)
	}
	if b.strict {
		switch {
		case m.Name == "":
			return catalog.Entry{}, apperr.Format("index.build", "missing name in %s", key)
		case m.Description == "":
			return catalog.Entry{}, apperr.Format("index.build", "missing description in %s", key)
		case m.RequiredInputs == nil:
			return catalog.Entry{}, apperr.Format("index.build", "missing required_inputs in %s", key)
		}
	}
	return m.Entry(key), nil
}

// Publish writes the index and vocabulary documents to the store.
func (b *Builder) Publish(ctx context.Context, res *Result) error {
	indexData, err := catalog.EncodeIndex(res.Index)
	if err != nil {
		return err
	}
	vocabData, err := catalog.EncodeVocabulary(res.Vocabulary)
	if err != nil {
		return err
	}

	if err := b.store.Put(ctx, catalog.IndexKey, indexData); err != nil {
		return err
	}
	if err := b.store.Put(ctx, catalog.VocabularyKey, vocabData); err != nil {
		return err
	}
	b.logger.Info("index published", "entries", len(res.Index), "tags", len(res.Vocabulary))
	return nil
}
