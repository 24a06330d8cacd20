package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicSwapIntoEmptyDestination(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, WriteFile(filepath.Join(src, "f"), []byte("x"), 0600))

	dest := filepath.Join(root, "dest")
	require.NoError(t, AtomicSwap(src, dest))
	assert.FileExists(t, filepath.Join(dest, "f"))
	assert.NoDirExists(t, src)
}

func TestAtomicSwapReplacesDestination(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dest := filepath.Join(root, "dest")
	require.NoError(t, WriteFile(filepath.Join(src, "new"), []byte("new"), 0600))
	require.NoError(t, WriteFile(filepath.Join(dest, "old"), []byte("old"), 0600))

	require.NoError(t, AtomicSwap(src, dest))
	assert.FileExists(t, filepath.Join(dest, "new"))
	assert.NoFileExists(t, filepath.Join(dest, "old"))
	assert.NoDirExists(t, dest+".bak")
}

func TestAtomicSwapMissingSourceKeepsDestination(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "dest")
	require.NoError(t, WriteFile(filepath.Join(dest, "old"), []byte("old"), 0600))

	err := AtomicSwap(filepath.Join(root, "absent"), dest)
	require.Error(t, err)
	assert.FileExists(t, filepath.Join(dest, "old"))
}

func TestStagingDir(t *testing.T) {
	root := t.TempDir()
	dir, err := StagingDir(filepath.Join(root, "sub", "pg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sub"), filepath.Dir(dir))
	assert.True(t, strings.HasPrefix(filepath.Base(dir), ".pg-staging-"))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
