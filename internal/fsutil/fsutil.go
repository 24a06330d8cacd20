// Package fsutil holds the filesystem helpers shared by the fetcher and the
// project generator.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicSwap replaces dest with src. An existing dest is moved to dest.bak
// first and restored if the final rename fails.
func AtomicSwap(src, dest string) error {
	backup := dest + ".bak"
	_ = os.RemoveAll(backup)

	hadDest := false
	if _, err := os.Stat(dest); err == nil {
		if err := os.Rename(dest, backup); err != nil {
			return fmt.Errorf("failed to back up %s: %w", dest, err)
		}
		hadDest = true
	}

	if err := os.Rename(src, dest); err != nil {
		if hadDest {
			_ = os.Rename(backup, dest)
		}
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(dest), err)
	}

	if hadDest {
		_ = os.RemoveAll(backup)
	}
	return nil
}

// StagingDir creates a hidden staging directory next to dest.
func StagingDir(dest string) (string, error) {
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", parent, err)
	}
	dir, err := os.MkdirTemp(parent, "."+filepath.Base(dest)+"-staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	return dir, nil
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
