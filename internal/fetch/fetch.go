// Package fetch materializes a catalog entry's remote files into the local
// templates directory.
//
// Files are downloaded into a staging directory next to the destination and
// swapped into place only once every file has been written, so a failed
// fetch leaves no partial template behind.
package fetch

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/catalog"
	"github.com/fastertools/devlaunch/internal/fsutil"
)

// LockFile is the advisory lock taken in the templates directory while a
// fetch swaps a template into place.
const LockFile = ".devlaunch.lock"

// Source reads remote objects by key. storage.Store and api.Client both
// satisfy it.
type Source interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Fetcher downloads entries into a templates directory.
type Fetcher struct {
	src         Source
	root        string
	lockTimeout time.Duration

	// Progress, when set, is called before each file is downloaded.
	Progress func(rel string, n, total int)
}

// New creates a fetcher writing under root.
func New(src Source, root string) *Fetcher {
	return &Fetcher{src: src, root: root, lockTimeout: 10 * time.Second}
}

// Fetch downloads keys into <root>/<entry.DirName()> and returns that
// directory. Every key must live under the entry's prefix.
func (f *Fetcher) Fetch(ctx context.Context, entry catalog.Entry, keys []string) (string, error) {
	name := entry.DirName()
	if name == "" || name == "." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", apperr.Format("fetch", "cannot derive a directory name from %q", entry.Location)
	}

	if len(keys) == 0 {
		return "", apperr.NotFound("fetch", "no files under %q", entry.Prefix()).
			WithFix("the catalog index may be stale; run 'devlaunch index build'")
	}
	rels, err := relativePaths(entry.Prefix(), keys)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(f.root, name)
	staging, err := fsutil.StagingDir(dest)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	for i, key := range keys {
		if f.Progress != nil {
			f.Progress(rels[i], i+1, len(keys))
		}
		data, err := f.src.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if err := fsutil.WriteFile(filepath.Join(staging, filepath.FromSlash(rels[i])), data, 0600); err != nil {
			return "", err
		}
	}

	unlock, err := f.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	if err := fsutil.AtomicSwap(staging, dest); err != nil {
		return "", err
	}
	committed = true
	return dest, nil
}

// relativePaths validates every key against prefix and returns the path of
// each key relative to it.
func relativePaths(prefix string, keys []string) ([]string, error) {
	rels := make([]string, len(keys))
	for i, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			return nil, apperr.Format("fetch", "key %q is outside prefix %q", key, prefix)
		}
		rel := key[len(prefix):]
		if rel == "" || strings.HasSuffix(rel, "/") {
			return nil, apperr.Format("fetch", "key %q does not name a file", key)
		}
		if strings.HasPrefix(rel, "/") || path.Clean(rel) != rel || strings.HasPrefix(rel, "../") || rel == ".." {
			return nil, apperr.Format("fetch", "key %q escapes the template directory", key)
		}
		rels[i] = rel
	}
	return rels, nil
}

func (f *Fetcher) lock(ctx context.Context) (func(), error) {
	l := flock.New(filepath.Join(f.root, LockFile))
	deadline := time.Now().Add(f.lockTimeout)
	for {
		locked, err := l.TryLock()
		if err != nil {
			return nil, fmt.Errorf("cannot acquire templates lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("another fetch is in progress (lock: %s)", l.Path())
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
