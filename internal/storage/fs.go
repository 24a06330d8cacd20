package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FSStore is a Store backed by a local directory. Keys map to paths under
// the root directory.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at dir. The directory is created on the
// first Put.
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

// Root returns the directory backing the store.
func (s *FSStore) Root() string {
	return s.root
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// List walks the root directory and returns the keys of all regular files
// starting with prefix, in lexical order.
func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == s.root {
				return filepath.SkipAll
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			// Skip staging and hidden directories
			if p != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}
	return keys, nil
}

// Get reads the file behind key.
func (s *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey("storage.get", key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key)) // #nosec G304 - key validated above
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound("storage.get", key, err)
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Open opens the file behind key for streaming.
func (s *FSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey("storage.open", key); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key)) // #nosec G304 - key validated above
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound("storage.open", key, err)
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}

// Put writes data at key, creating parent directories as needed. The write
// goes through a temp file and a rename.
func (s *FSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := validateKey("storage.put", key); err != nil {
		return err
	}
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}
