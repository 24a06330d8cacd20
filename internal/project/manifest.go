package project

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/fsutil"
)

// ManifestFile is written at the root of every generated project.
const ManifestFile = "devlaunch.toml"

// Manifest records where a project came from. Only the names of the inputs
// are kept; their values may be credentials.
type Manifest struct {
	Template  string    `toml:"template"`
	CreatedAt time.Time `toml:"created_at"`
	Inputs    []string  `toml:"inputs"`
}

// Write stores the manifest in dir.
func (m *Manifest) Write(dir string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return apperr.Wrap(apperr.KindFormat, "manifest", "failed to encode manifest", err)
	}
	return fsutil.WriteFile(filepath.Join(dir, ManifestFile), buf.Bytes(), 0600)
}

// ReadManifest loads the manifest in dir.
func ReadManifest(dir string) (*Manifest, error) {
	p := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(p) // #nosec G304 - fixed name inside a project dir
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("manifest", "%s not found in %s", ManifestFile, dir)
	}
	if err != nil {
		return nil, err
	}
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "manifest", "invalid "+ManifestFile, err)
	}
	return &m, nil
}
