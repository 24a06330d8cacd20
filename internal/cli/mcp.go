package cli

import (
	"github.com/spf13/cobra"

	"github.com/fastertools/devlaunch/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the catalog to MCP clients over stdio",
		Long: `Run an MCP server on stdin/stdout exposing the tools
resolve_template, list_templates and read_template_file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, err := openCatalog(ctx, loadConfig())
			if err != nil {
				return err
			}
			return mcp.NewServer(cat, version, mcp.WithLogger(newLogger(levelWarn))).Run(ctx)
		},
	}
}
