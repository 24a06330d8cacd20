// Package storage provides the blob stores that hold the template catalog.
//
// Keys are slash-separated paths. Two production backends exist: S3Store for
// an S3-compatible bucket and FSStore for a local directory tree.
package storage

import (
	"context"
	"io"
	"strings"

	"github.com/fastertools/devlaunch/internal/apperr"
)

// Store is a flat key/value blob store.
type Store interface {
	// List returns every key that starts with prefix, in backend listing
	// order. Pagination is handled internally.
	List(ctx context.Context, prefix string) ([]string, error)
	// Get returns the content behind key. A missing key is an
	// apperr.KindNotFound error.
	Get(ctx context.Context, key string) ([]byte, error)
	// Open streams the content behind key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Put writes data at key, replacing any previous content.
	Put(ctx context.Context, key string, data []byte) error
}

func notFound(op, key string, err error) error {
	return apperr.Wrap(apperr.KindNotFound, op, "no such key "+key, err)
}

// validateKey rejects keys that cannot be mapped onto a path safely.
func validateKey(op, key string) error {
	if key == "" {
		return apperr.Input(op, "empty key")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return apperr.Input(op, "key %q escapes the store root", key)
		}
	}
	return nil
}

// Prefixed scopes a store under prefix: keys passed in are relative to prefix
// and keys returned by List have the prefix stripped.
func Prefixed(s Store, prefix string) Store {
	if prefix == "" {
		return s
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &prefixedStore{store: s, prefix: prefix}
}

type prefixedStore struct {
	store  Store
	prefix string
}

func (p *prefixedStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := p.store.List(ctx, p.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, p.prefix))
	}
	return out, nil
}

func (p *prefixedStore) Get(ctx context.Context, key string) ([]byte, error) {
	return p.store.Get(ctx, p.prefix+key)
}

func (p *prefixedStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return p.store.Open(ctx, p.prefix+key)
}

func (p *prefixedStore) Put(ctx context.Context, key string, data []byte) error {
	return p.store.Put(ctx, p.prefix+key, data)
}
