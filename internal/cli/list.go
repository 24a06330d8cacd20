package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fastertools/devlaunch/internal/project"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates or projects",
	}
	cmd.AddCommand(newListTemplatesCmd(), newListProjectsCmd())
	return cmd
}

func newListTemplatesCmd() *cobra.Command {
	var filter string
	var remote bool

	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"t"},
		Short:   "List local templates, or the shared catalog with --remote",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dw := NewDataWriter(cmd.OutOrStdout(), outputFormat)
			if remote {
				return listCatalog(cmd.Context(), dw, filter)
			}
			return listLocalTemplates(dw, filter)
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "fuzzy filter on name, description and tags")
	cmd.Flags().BoolVar(&remote, "remote", false, "list the shared catalog instead of local templates")
	return cmd
}

func listLocalTemplates(dw *DataWriter, filter string) error {
	templates, err := openWorkspace(loadConfig()).ListTemplates()
	if err != nil {
		return err
	}
	templates = project.FilterTemplates(templates, filter)
	if len(templates) == 0 && !dw.Structured() {
		Info("No local templates. Fetch one with 'devlaunch new \"<what you need>\"'")
		return nil
	}

	tb := NewTableBuilder("NAME", "DESCRIPTION", "INPUTS", "TAGS")
	for _, t := range templates {
		tb.AddRow(t.Name, t.Metadata.Description,
			strings.Join(t.Metadata.RequiredInputs, ","), strings.Join(t.Metadata.Tags, ","))
	}
	return tb.Write(dw)
}

func listCatalog(ctx context.Context, dw *DataWriter, filter string) error {
	cat, err := openCatalog(ctx, loadConfig())
	if err != nil {
		return err
	}
	idx, err := cat.Catalog(ctx)
	if err != nil {
		return err
	}

	tb := NewTableBuilder("NAME", "DESCRIPTION", "TAGS", "LOCATION")
	for _, e := range project.FilterEntries(idx, filter) {
		tb.AddRow(e.DirName(), e.Description, strings.Join(e.Tags.Sorted(), ","), e.Location)
	}
	return tb.Write(dw)
}

func newListProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "projects",
		Aliases: []string{"p"},
		Short:   "List generated projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := openWorkspace(loadConfig()).ListProjects()
			if err != nil {
				return err
			}
			dw := NewDataWriter(cmd.OutOrStdout(), outputFormat)
			if len(projects) == 0 && !dw.Structured() {
				Info("No projects yet. Create one with 'devlaunch generate <template>'")
				return nil
			}

			tb := NewTableBuilder("NAME", "TEMPLATE", "CREATED", "SERVICES")
			for _, p := range projects {
				template, created := "-", "-"
				if p.Manifest != nil {
					template = p.Manifest.Template
					created = p.Manifest.CreatedAt.Local().Format(time.DateTime)
				}
				tb.AddRow(p.Name, template, created, strings.Join(p.Services, ","))
			}
			return tb.Write(dw)
		},
	}
}
