// Package project manages the local workspace: template directories fetched
// from the catalog and the projects generated from them.
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/catalog"
	"github.com/fastertools/devlaunch/internal/compose"
	"github.com/fastertools/devlaunch/internal/fsutil"
	"github.com/fastertools/devlaunch/internal/render"
)

// TemplateSuffix marks files rendered during generation.
const TemplateSuffix = ".j2"

// Workspace is a pair of local directories: one holding template
// directories, one holding generated projects.
type Workspace struct {
	TemplatesDir string
	ProjectsDir  string

	now func() time.Time
}

// NewWorkspace creates a workspace over the given directories. Neither has
// to exist yet.
func NewWorkspace(templatesDir, projectsDir string) *Workspace {
	return &Workspace{TemplatesDir: templatesDir, ProjectsDir: projectsDir, now: time.Now}
}

// Template is a local template directory.
type Template struct {
	Name     string
	Dir      string
	Metadata catalog.Metadata
}

// Inputs returns the variables a generator should ask for: the declared
// required inputs first, then any other variable the compose body uses.
func (t *Template) Inputs() ([]string, error) {
	body, err := os.ReadFile(filepath.Join(t.Dir, catalog.BodyFile)) // #nosec G304 - template dir
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", catalog.BodyFile, err)
	}
	inputs := append([]string(nil), t.Metadata.RequiredInputs...)
	seen := make(map[string]bool, len(inputs))
	for _, name := range inputs {
		seen[name] = true
	}
	for _, name := range render.Variables(string(body)) {
		if !seen[name] {
			inputs = append(inputs, name)
			seen[name] = true
		}
	}
	return inputs, nil
}

// ListTemplates returns the template directories in the workspace, sorted
// by name. A directory counts as a template when it has a compose body.
// Hidden directories and leftover backups are skipped.
func (w *Workspace) ListTemplates() ([]Template, error) {
	entries, err := os.ReadDir(w.TemplatesDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	var templates []Template
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".bak") {
			continue
		}
		if _, err := os.Stat(filepath.Join(w.TemplatesDir, name, catalog.BodyFile)); err != nil {
			continue
		}
		t, err := w.LoadTemplate(name)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, nil
}

// FilterTemplates keeps the templates whose name, description or tags
// fuzzily match query, best match first. An empty query keeps everything.
func FilterTemplates(templates []Template, query string) []Template {
	if strings.TrimSpace(query) == "" {
		return templates
	}
	search := make([]string, len(templates))
	for i, t := range templates {
		search[i] = searchText(t.Name, t.Metadata.Description, t.Metadata.Tags)
	}
	var out []Template
	for _, i := range fuzzyFind(query, search) {
		out = append(out, templates[i])
	}
	return out
}

// FilterEntries is FilterTemplates for catalog entries.
func FilterEntries(idx catalog.Index, query string) catalog.Index {
	if strings.TrimSpace(query) == "" {
		return idx
	}
	search := make([]string, len(idx))
	for i, e := range idx {
		search[i] = searchText(e.DirName(), e.Description, e.Tags.Sorted())
	}
	var out catalog.Index
	for _, i := range fuzzyFind(query, search) {
		out = append(out, idx[i])
	}
	return out
}

func searchText(name, description string, tags []string) string {
	return strings.ToLower(fmt.Sprintf("%s %s %s", name, description, strings.Join(tags, " ")))
}

func fuzzyFind(query string, search []string) []int {
	matches := fuzzy.Find(strings.ToLower(query), search)
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m.Index
	}
	return out
}

// LoadTemplate reads the template directory called name.
func (w *Workspace) LoadTemplate(name string) (*Template, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, apperr.Input("template", "invalid template name %q", name)
	}
	dir := filepath.Join(w.TemplatesDir, name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, apperr.NotFound("template", "template '%s' not found", name).
			WithFix("run 'devlaunch list templates' or fetch one with 'devlaunch new'")
	}

	t := &Template{Name: name, Dir: dir}
	data, err := os.ReadFile(filepath.Join(dir, catalog.MetadataFile)) // #nosec G304 - template dir
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// A bare compose body is still usable.
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", catalog.MetadataFile, err)
	default:
		if t.Metadata, err = catalog.ParseMetadata(data); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(filepath.Join(dir, catalog.BodyFile)); err != nil {
		return nil, apperr.Format("template", "template '%s' has no %s", name, catalog.BodyFile)
	}
	return t, nil
}

// GenerateOptions describes one generation run.
type GenerateOptions struct {
	Template string
	Project  string
	Values   map[string]string
	// Force replaces an existing project directory.
	Force bool
}

// Generate renders a template into a new project directory. Files ending in
// .j2 are rendered and lose the suffix, except the compose body which
// becomes docker-compose.yml. Other files are copied; template.yaml is not.
// The project is staged and swapped into place, so a failed render leaves
// any existing project untouched.
func (w *Workspace) Generate(opts GenerateOptions) (*Project, error) {
	if err := ValidateName(opts.Project); err != nil {
		return nil, err
	}
	t, err := w.LoadTemplate(opts.Template)
	if err != nil {
		return nil, err
	}

	dest := filepath.Join(w.ProjectsDir, opts.Project)
	if _, err := os.Stat(dest); err == nil && !opts.Force {
		return nil, apperr.Input("generate", "project '%s' already exists", opts.Project).
			WithFix("choose another name or pass --force to overwrite it")
	}

	staging, err := fsutil.StagingDir(dest)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(staging)
		}
	}()

	err = filepath.WalkDir(t.Dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(t.Dir, p)
		if d.IsDir() {
			if rel != "." && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if rel == catalog.MetadataFile || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		return emit(p, filepath.Join(staging, outputName(rel)), opts.Values, t.Metadata.RequiredInputs)
	})
	if err != nil {
		return nil, err
	}

	now := time.Now
	if w.now != nil {
		now = w.now
	}
	m := &Manifest{Template: t.Name, CreatedAt: now().UTC().Truncate(time.Second), Inputs: inputNames(opts.Values)}
	if err := m.Write(staging); err != nil {
		return nil, err
	}

	if err := fsutil.AtomicSwap(staging, dest); err != nil {
		return nil, err
	}
	committed = true
	return w.LoadProject(opts.Project)
}

func emit(src, dst string, values map[string]string, required []string) error {
	data, err := os.ReadFile(src) // #nosec G304 - walking the template dir
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if strings.HasSuffix(src, TemplateSuffix) {
		out, err := render.Render(string(data), values, required)
		if err != nil {
			return err
		}
		data = []byte(out)
	}
	return fsutil.WriteFile(dst, data, info.Mode().Perm()|0600)
}

func outputName(rel string) string {
	if rel == catalog.BodyFile {
		return compose.FileNames[0]
	}
	return strings.TrimSuffix(rel, TemplateSuffix)
}

func inputNames(values map[string]string) []string {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Project is a generated project directory.
type Project struct {
	Name     string
	Dir      string
	Manifest *Manifest
	Services []string
}

// ProjectDir returns the directory of an existing project.
func (w *Workspace) ProjectDir(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	dir := filepath.Join(w.ProjectsDir, name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", apperr.NotFound("project", "project '%s' not found", name).
			WithFix("run 'devlaunch list projects' to see generated projects")
	}
	return dir, nil
}

// LoadProject reads a project's manifest and compose services. Projects
// created by hand have no manifest; a missing compose file leaves Services
// empty.
func (w *Workspace) LoadProject(name string) (*Project, error) {
	dir, err := w.ProjectDir(name)
	if err != nil {
		return nil, err
	}
	p := &Project{Name: name, Dir: dir}
	if p.Manifest, err = ReadManifest(dir); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if f, err := compose.LoadFile(dir); err == nil {
		p.Services = f.Services
	}
	return p, nil
}

// ListProjects returns the projects in the workspace, sorted by name.
func (w *Workspace) ListProjects() ([]Project, error) {
	entries, err := os.ReadDir(w.ProjectsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read projects directory: %w", err)
	}

	var projects []Project
	for _, e := range entries {
		if !e.IsDir() || ValidateName(e.Name()) != nil {
			continue
		}
		p, err := w.LoadProject(e.Name())
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

// ValidateName checks a project name. Names are used as directory names and
// as the compose project name, so they are restricted to lowercase letters,
// digits and single hyphens, starting with a letter.
func ValidateName(name string) error {
	if name == "" {
		return apperr.Input("project", "project name cannot be empty")
	}
	if name[0] < 'a' || name[0] > 'z' {
		return apperr.Input("project", "project name must start with a lowercase letter")
	}
	if strings.HasSuffix(name, "-") || strings.Contains(name, "--") {
		return apperr.Input("project", "project name cannot end with a hyphen or contain consecutive hyphens")
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return apperr.Input("project", "project name must contain only lowercase letters, numbers, and hyphens")
		}
	}
	return nil
}
