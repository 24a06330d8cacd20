package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fastertools/devlaunch/internal/indexer"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Maintain the catalog index",
	}
	cmd.AddCommand(newIndexBuildCmd())
	return cmd
}

func newIndexBuildCmd() *cobra.Command {
	var dryRun bool
	var strict bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild index.yaml and tags.yaml from every template.yaml in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := loadConfig()
			store, err := openStore(ctx, cfg.Storage)
			if err != nil {
				return err
			}

			b := indexer.New(store,
				indexer.WithLogger(newLogger(slog.LevelError)),
				indexer.WithStrict(strict),
			)
			sp := startSpinner("Scanning templates...")
			res, err := b.Build(ctx)
			sp.Stop()
			if err != nil {
				return err
			}

			for _, s := range res.Skipped {
				Warn("Skipped %s: %s", s.Key, s.Reason)
			}

			dw := NewDataWriter(cmd.OutOrStdout(), outputFormat)
			if dw.Structured() {
				err = dw.WriteStruct(res)
			} else {
				tb := NewTableBuilder("LOCATION", "NAME", "TAGS")
				for _, e := range res.Index {
					tb.AddRow(e.Location, e.Name, e.Tags.String())
				}
				err = tb.Write(dw)
			}
			if err != nil {
				return err
			}

			if dryRun {
				Info("Dry run: %d templates, %d tags, nothing written", len(res.Index), len(res.Vocabulary))
				return nil
			}
			if err := b.Publish(ctx, res); err != nil {
				return err
			}
			Success("Indexed %d templates with %d tags", len(res.Index), len(res.Vocabulary))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the index without writing it")
	cmd.Flags().BoolVar(&strict, "strict", false, "also require name, description and required_inputs")
	return cmd
}
