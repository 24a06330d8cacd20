package compose

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fastertools/devlaunch/internal/apperr"
)

// FileNames are the compose file names recognized in a project directory,
// in lookup order.
var FileNames = []string{"docker-compose.yml", "docker-compose.yaml", "compose.yaml", "compose.yml"}

// File is the part of a compose file devlaunch inspects.
type File struct {
	Path     string
	Services []string
}

// FindFile returns the compose file in dir.
func FindFile(dir string) (string, error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", apperr.NotFound("compose", "no compose file in %s", dir)
}

// LoadFile parses the compose file in dir and lists its services.
func LoadFile(dir string) (*File, error) {
	p, err := FindFile(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p) // #nosec G304 - path built from a known file name
	if err != nil {
		return nil, err
	}

	var doc struct {
		Services map[string]yaml.Node `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Wrap(apperr.KindFormat, "compose", filepath.Base(p)+" is not valid YAML", err)
	}
	if len(doc.Services) == 0 {
		return nil, apperr.Format("compose", "%s defines no services", filepath.Base(p))
	}

	f := &File{Path: p}
	for name := range doc.Services {
		f.Services = append(f.Services, name)
	}
	sort.Strings(f.Services)
	return f, nil
}
