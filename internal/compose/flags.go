package compose

import (
	"strings"

	"github.com/fastertools/devlaunch/internal/apperr"
)

// Actions with a pass-through flag allow-list.
const (
	ActionUp   = "up"
	ActionDown = "down"
)

type flagSpec struct {
	takesValue bool
}

var allowed = map[string]map[string]flagSpec{
	ActionUp: {
		"-d":               {},
		"--detach":         {},
		"--build":          {},
		"--pull":           {takesValue: true},
		"--remove-orphans": {},
		"--force-recreate": {},
		"--no-deps":        {},
		"--wait":           {},
		"--quiet-pull":     {},
	},
	ActionDown: {
		"-v":               {},
		"--volumes":        {},
		"--remove-orphans": {},
		"--rmi":            {takesValue: true},
		"-t":               {takesValue: true},
		"--timeout":        {takesValue: true},
	},
}

// ValidateFlags checks the flags passed through to compose for action.
// Flags outside the allow-list are rejected unless allowUnsafe is set.
// Values may be attached ("--pull=always") or given as the next argument.
func ValidateFlags(action string, flags []string, allowUnsafe bool) error {
	specs, ok := allowed[action]
	if !ok {
		return apperr.Input("compose", "unknown action %q", action)
	}
	if allowUnsafe {
		return nil
	}

	for i := 0; i < len(flags); i++ {
		arg := flags[i]
		if !strings.HasPrefix(arg, "-") {
			return apperr.Input("compose", "unexpected argument %q", arg).
				WithFix("service names and positional arguments need --allow-unsafe")
		}

		name, _, attached := strings.Cut(arg, "=")
		spec, ok := specs[name]
		if !ok {
			return apperr.Input("compose", "flag %s is not allowed for %s", name, action).
				WithFix("pass --allow-unsafe to forward it anyway")
		}
		if spec.takesValue && !attached {
			if i+1 >= len(flags) {
				return apperr.Input("compose", "flag %s requires a value", name)
			}
			i++
		}
		if !spec.takesValue && attached {
			return apperr.Input("compose", "flag %s does not take a value", name)
		}
	}
	return nil
}

// AllowedFlags returns the allow-list for action, for help output.
func AllowedFlags(action string) []string {
	var out []string
	for _, name := range orderedFlags[action] {
		if allowed[action][name].takesValue {
			name += " <value>"
		}
		out = append(out, name)
	}
	return out
}

var orderedFlags = map[string][]string{
	ActionUp:   {"-d", "--detach", "--build", "--pull", "--remove-orphans", "--force-recreate", "--no-deps", "--wait", "--quiet-pull"},
	ActionDown: {"-v", "--volumes", "--remove-orphans", "--rmi", "-t", "--timeout"},
}
