package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/catalog"
	"github.com/fastertools/devlaunch/internal/storage"
)

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

func TestFetchWritesRelativeTree(t *testing.T) {
	root := t.TempDir()
	src := storage.NewMemoryStore(map[string]string{
		"tpl/a.yml":   "A",
		"tpl/b/c.yml": "C",
	})
	entry := catalog.Entry{Location: "tpl/"}

	dir, err := New(src, root).Fetch(context.Background(), entry, []string{"tpl/a.yml", "tpl/b/c.yml"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "tpl"), dir)
	assert.Equal(t, "A", readFile(t, filepath.Join(dir, "a.yml")))
	assert.Equal(t, "C", readFile(t, filepath.Join(dir, "b", "c.yml")))
}

func TestFetchUsesEntryName(t *testing.T) {
	root := t.TempDir()
	src := storage.NewMemoryStore(map[string]string{"stacks/pg/template.yaml": "tags: [pg]"})
	entry := catalog.Entry{Name: "postgres", Location: "stacks/pg/template.yaml"}

	dir, err := New(src, root).Fetch(context.Background(), entry, []string{"stacks/pg/template.yaml"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "postgres"), dir)
	assert.FileExists(t, filepath.Join(dir, "template.yaml"))
}

func TestFetchRejectsKeyOutsidePrefix(t *testing.T) {
	root := t.TempDir()
	src := storage.NewMemoryStore(map[string]string{
		"tpl/a.yml":   "A",
		"other/a.yml": "X",
	})
	entry := catalog.Entry{Location: "tpl/"}

	_, err := New(src, root).Fetch(context.Background(), entry, []string{"tpl/a.yml", "other/a.yml"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrFormat)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing should be written")
	assert.Zero(t, src.Calls)
}

func TestFetchRejectsEscapingKeys(t *testing.T) {
	entry := catalog.Entry{Location: "tpl/"}
	for _, key := range []string{"tpl/../etc/passwd", "tpl/", "tpl//a", "tpl/./a"} {
		_, err := New(storage.NewMemoryStore(nil), t.TempDir()).Fetch(context.Background(), entry, []string{key})
		assert.ErrorIs(t, err, apperr.ErrFormat, key)
	}
}

func TestFetchRejectsUnnamedEntry(t *testing.T) {
	_, err := New(storage.NewMemoryStore(nil), t.TempDir()).Fetch(context.Background(), catalog.Entry{Location: "template.yaml"}, nil)
	assert.ErrorIs(t, err, apperr.ErrFormat)
}

type failingSource struct {
	data    map[string]string
	failOn  string
	fetched []string
}

func (f *failingSource) Get(ctx context.Context, key string) ([]byte, error) {
	f.fetched = append(f.fetched, key)
	if key == f.failOn {
		return nil, errors.New("connection reset")
	}
	return []byte(f.data[key]), nil
}

func TestFetchFailureLeavesNoPartialTree(t *testing.T) {
	root := t.TempDir()
	src := &failingSource{
		data:   map[string]string{"tpl/a.yml": "A"},
		failOn: "tpl/b.yml",
	}

	_, err := New(src, root).Fetch(context.Background(), catalog.Entry{Location: "tpl/"}, []string{"tpl/a.yml", "tpl/b.yml"})
	require.Error(t, err)
	assert.Equal(t, []string{"tpl/a.yml", "tpl/b.yml"}, src.fetched)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchFailureKeepsPreviousTemplate(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "tpl")
	require.NoError(t, os.MkdirAll(existing, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(existing, "a.yml"), []byte("old"), 0600))

	src := &failingSource{failOn: "tpl/a.yml"}
	_, err := New(src, root).Fetch(context.Background(), catalog.Entry{Location: "tpl/"}, []string{"tpl/a.yml"})
	require.Error(t, err)
	assert.Equal(t, "old", readFile(t, filepath.Join(existing, "a.yml")))
}

func TestFetchWithoutFilesKeepsPreviousTemplate(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "tpl")
	require.NoError(t, os.MkdirAll(existing, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(existing, "docker-compose.j2"), []byte("old"), 0600))

	_, err := New(storage.NewMemoryStore(nil), root).Fetch(context.Background(), catalog.Entry{Location: "tpl/template.yaml"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "old", readFile(t, filepath.Join(existing, "docker-compose.j2")))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staging directory should be left behind")
}

func TestFetchReplacesExistingTemplate(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "tpl")
	require.NoError(t, os.MkdirAll(existing, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(existing, "stale.yml"), []byte("old"), 0600))

	src := storage.NewMemoryStore(map[string]string{"tpl/a.yml": "new"})
	dir, err := New(src, root).Fetch(context.Background(), catalog.Entry{Location: "tpl/"}, []string{"tpl/a.yml"})
	require.NoError(t, err)

	assert.Equal(t, "new", readFile(t, filepath.Join(dir, "a.yml")))
	assert.NoFileExists(t, filepath.Join(dir, "stale.yml"))
	assert.NoDirExists(t, existing+".bak")
}

func TestFetchReportsProgress(t *testing.T) {
	src := storage.NewMemoryStore(map[string]string{"tpl/a": "1", "tpl/b": "2"})
	f := New(src, t.TempDir())

	var seen []string
	f.Progress = func(rel string, n, total int) {
		assert.Equal(t, 2, total)
		seen = append(seen, rel)
	}
	_, err := f.Fetch(context.Background(), catalog.Entry{Location: "tpl/"}, []string{"tpl/a", "tpl/b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)
}
