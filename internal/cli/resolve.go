package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <prompt>",
		Short: "Show which catalog template a prompt resolves to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, err := openCatalog(ctx, loadConfig())
			if err != nil {
				return err
			}
			res, err := cat.Resolve(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			dw := NewDataWriter(cmd.OutOrStdout(), outputFormat)
			if dw.Structured() {
				return dw.WriteStruct(res)
			}
			if res.Matched == nil {
				Warn("No match for tags: %s", strings.Join(res.Tags, ", "))
				return nil
			}

			m := res.Matched
			if err := NewKeyValueBuilder("Match").
				Add("Name", m.DirName()).
				AddIf(m.Description != "", "Description", m.Description).
				Add("Location", m.Location).
				Add("Tags", m.Tags.String()).
				AddIf(len(m.RequiredInputs) > 0, "Inputs", strings.Join(m.RequiredInputs, ", ")).
				Write(dw); err != nil {
				return err
			}

			tb := NewTableBuilder("FILE")
			for _, f := range res.Files {
				tb.AddRow(f)
			}
			return tb.Write(dw)
		},
	}
}
