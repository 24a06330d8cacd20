package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastertools/devlaunch/internal/apperr"
)

func TestFSStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewFSStore(t.TempDir())

	require.NoError(t, s.Put(ctx, "nginx/template.yaml", []byte("tags: [nginx]")))
	require.NoError(t, s.Put(ctx, "nginx/conf/default.conf", []byte("server {}")))
	require.NoError(t, s.Put(ctx, "postgres/template.yaml", []byte("tags: [postgres]")))

	data, err := s.Get(ctx, "nginx/template.yaml")
	require.NoError(t, err)
	assert.Equal(t, "tags: [nginx]", string(data))

	keys, err := s.List(ctx, "nginx/")
	require.NoError(t, err)
	assert.Equal(t, []string{"nginx/conf/default.conf", "nginx/template.yaml"}, keys)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFSStoreOpen(t *testing.T) {
	ctx := context.Background()
	s := NewFSStore(t.TempDir())
	require.NoError(t, s.Put(ctx, "a/b.txt", []byte("hello")))

	rc, err := s.Open(ctx, "a/b.txt")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFSStoreMissingKey(t *testing.T) {
	ctx := context.Background()
	s := NewFSStore(t.TempDir())

	_, err := s.Get(ctx, "nope.yaml")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Open(ctx, "nope.yaml")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFSStoreMissingRootListsNothing(t *testing.T) {
	s := NewFSStore(filepath.Join(t.TempDir(), "absent"))

	keys, err := s.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestFSStoreSkipsHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".staging"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".staging", "x"), []byte("x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.yaml"), []byte("[]"), 0600))

	keys, err := NewFSStore(root).List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"index.yaml"}, keys)
}

func TestFSStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	s := NewFSStore(t.TempDir())

	for _, key := range []string{"", "../outside", "a/../../b"} {
		assert.ErrorIs(t, s.Put(ctx, key, []byte("x")), apperr.ErrInput, key)
		_, err := s.Get(ctx, key)
		assert.ErrorIs(t, err, apperr.ErrInput, key)
	}
}

func TestPrefixed(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore(map[string]string{
		"templates/nginx/template.yaml": "a",
		"templates/index.yaml":          "b",
		"other/file":                    "c",
	})
	s := Prefixed(base, "templates")

	keys, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"index.yaml", "nginx/template.yaml"}, keys)

	data, err := s.Get(ctx, "index.yaml")
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))

	require.NoError(t, s.Put(ctx, "tags.yaml", []byte("[]")))
	assert.Contains(t, base.Keys(), "templates/tags.yaml")
}

func TestPrefixedEmptyIsIdentity(t *testing.T) {
	base := NewMemoryStore(nil)
	assert.Same(t, base, Prefixed(base, "").(*MemoryStore))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(map[string]string{"b": "2", "a": "1"})

	keys, err := m.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	_, err = m.Get(ctx, "c")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	rc, err := m.Open(ctx, "a")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "1", string(data))
	assert.Equal(t, 3, m.Calls)
}
