// Package render interpolates Jinja-style template bodies.
package render

import (
	"regexp"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/fastertools/devlaunch/internal/apperr"
)

func init() {
	// Compose files are not HTML.
	pongo2.SetAutoescape(false)
}

var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	varPattern   = regexp.MustCompile(`\{\{-?\s*([A-Za-z_][A-Za-z0-9_]*)`)
	forPattern   = regexp.MustCompile(`\{%-?\s*for\s+([A-Za-z_][A-Za-z0-9_]*)(?:\s*,\s*([A-Za-z_][A-Za-z0-9_]*))?\s+in\s`)
	setPattern   = regexp.MustCompile(`\{%-?\s*(?:set|with)\s+([A-Za-z_][A-Za-z0-9_]*)\s*=`)
)

// loopNames are provided by the engine inside for blocks.
var loopNames = []string{"loop", "forloop"}

// ValidName reports whether name can be used as a template variable.
func ValidName(name string) bool {
	return identPattern.MatchString(name)
}

// Render interpolates body with vars. Every name in required must be present
// in vars with a non-empty value; the error lists all that are missing.
func Render(body string, vars map[string]string, required []string) (string, error) {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(vars[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", apperr.Input("render", "missing required variables: %s", strings.Join(missing, ", "))
	}

	ctx := make(pongo2.Context, len(vars))
	for k, v := range vars {
		if !ValidName(k) {
			return "", apperr.Input("render", "invalid variable name %q", k)
		}
		ctx[k] = v
	}

	tpl, err := pongo2.FromString(body)
	if err != nil {
		return "", apperr.Wrap(apperr.KindFormat, "render", "template syntax error", err)
	}
	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", apperr.Wrap(apperr.KindFormat, "render", "template execution failed", err)
	}
	return out, nil
}

// Variables returns the plain variable names referenced by {{ name }}
// expressions in body, sorted and de-duplicated. Names the template binds
// itself with for, set or with tags are left out.
func Variables(body string) []string {
	bound := map[string]struct{}{}
	for _, name := range loopNames {
		bound[name] = struct{}{}
	}
	for _, m := range forPattern.FindAllStringSubmatch(body, -1) {
		bound[m[1]] = struct{}{}
		if m[2] != "" {
			bound[m[2]] = struct{}{}
		}
	}
	for _, m := range setPattern.FindAllStringSubmatch(body, -1) {
		bound[m[1]] = struct{}{}
	}

	seen := map[string]struct{}{}
	for _, m := range varPattern.FindAllStringSubmatch(body, -1) {
		if _, ok := bound[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
