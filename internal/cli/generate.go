package cli

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/compose"
	"github.com/fastertools/devlaunch/internal/project"
	"github.com/fastertools/devlaunch/internal/render"
)

var secretInput = regexp.MustCompile(`(?i)(password|secret|token|api_?key)`)

type generateOptions struct {
	Template string
	Name     string
	Set      []string
	Force    bool
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate <template>",
		Short: "Render a local template into a new project",
		Long: `Render a local template into projects/<name>/.

Every required input is taken from --set or asked for interactively.
Variables the compose template uses but does not require are asked for too
and may be left empty.`,
		Example: `  devlaunch generate postgres --name my-db --set db_password=secret
  devlaunch generate nginx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Template = args[0]
			return runGenerate(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "project name")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "template input as KEY=VALUE (repeatable)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing project")
	return cmd
}

func runGenerate(opts *generateOptions) error {
	ws := openWorkspace(loadConfig())
	tpl, err := ws.LoadTemplate(opts.Template)
	if err != nil {
		return err
	}

	values, err := parseSet(opts.Set)
	if err != nil {
		return err
	}
	if err := promptInputs(tpl, values); err != nil {
		return err
	}

	name := opts.Name
	if name == "" {
		if !isInteractive() {
			return apperr.Input("generate", "project name is required").WithFix("pass --name")
		}
		if err := askOne(&survey.Input{Message: "Project name:", Default: defaultProjectName(tpl.Name)}, &name,
			survey.WithValidator(func(ans interface{}) error {
				return project.ValidateName(strings.TrimSpace(fmt.Sprint(ans)))
			})); err != nil {
			return err
		}
		name = strings.TrimSpace(name)
	}

	p, err := ws.Generate(project.GenerateOptions{
		Template: tpl.Name,
		Project:  name,
		Values:   values,
		Force:    opts.Force,
	})
	if err != nil {
		return err
	}

	Success("Generated %s at: %s", compose.FileNames[0], filepath.Join(p.Dir, compose.FileNames[0]))
	Info("Start it with 'devlaunch up %s'", p.Name)
	return nil
}

// parseSet reads KEY=VALUE pairs.
func parseSet(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || !render.ValidName(k) {
			return nil, apperr.Input("generate", "invalid --set %q, expected KEY=VALUE", pair)
		}
		values[k] = v
	}
	return values, nil
}

// promptInputs asks for every template input not already in values.
// Without a terminal nothing is asked and rendering reports what is missing.
func promptInputs(tpl *project.Template, values map[string]string) error {
	inputs, err := tpl.Inputs()
	if err != nil {
		return err
	}
	if !isInteractive() {
		return nil
	}

	required := make(map[string]bool, len(tpl.Metadata.RequiredInputs))
	for _, name := range tpl.Metadata.RequiredInputs {
		required[name] = true
	}

	for _, name := range inputs {
		if _, ok := values[name]; ok {
			continue
		}
		var prompt survey.Prompt = &survey.Input{Message: name + ":"}
		if secretInput.MatchString(name) {
			prompt = &survey.Password{Message: name + ":"}
		}
		var askOpts []survey.AskOpt
		if required[name] {
			askOpts = append(askOpts, survey.WithValidator(survey.Required))
		}

		var value string
		if err := askOne(prompt, &value, askOpts...); err != nil {
			return err
		}
		values[name] = value
	}
	return nil
}

func defaultProjectName(template string) string {
	name := strings.ToLower(template)
	if project.ValidateName(name) == nil {
		return name
	}
	return ""
}
