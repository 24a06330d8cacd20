package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/catalog"
	"github.com/fastertools/devlaunch/internal/config"
	"github.com/fastertools/devlaunch/internal/fetch"
	"github.com/fastertools/devlaunch/internal/ingest"
	"github.com/fastertools/devlaunch/internal/llm"
)

type newOptions struct {
	Prompt string
	AI     bool
	Yes    bool
}

func newNewCmd() *cobra.Command {
	opts := &newOptions{}

	cmd := &cobra.Command{
		Use:   "new <prompt>",
		Short: "Find a template for what you describe and fetch it",
		Long: `Resolve a description against the shared catalog and fetch the matching
template into the local templates directory.

When nothing matches, devlaunch can ask the configured LLM to write a new
template, store it in the catalog and fetch it. This happens with --ai, or
after confirmation in an interactive terminal.`,
		Example: `  devlaunch new "postgres with docker"
  devlaunch new "redis and kafka" --ai --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Prompt = strings.Join(args, " ")
			return runNew(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.AI, "ai", false, "generate a template with the LLM when nothing matches")
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func runNew(ctx context.Context, opts *newOptions) error {
	cfg := loadConfig()
	cat, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	sp := startSpinner("Searching the catalog...")
	res, err := cat.Resolve(ctx, opts.Prompt)
	sp.Stop()
	if err != nil {
		return err
	}
	Debug("Prompt tags: %s", strings.Join(res.Tags, ", "))

	if res.Matched != nil {
		Info("Matched %s (tags: %s)", res.Matched.DirName(), res.Matched.Tags)
		return fetchEntry(ctx, cat, cfg.TemplatesDir, *res.Matched, res.Files)
	}

	if len(res.Tags) == 0 {
		Warn("No known technology found in %q", opts.Prompt)
	} else {
		Warn("No template has exactly the tags: %s", strings.Join(res.Tags, ", "))
	}

	generate, err := wantIngest(opts)
	if err != nil {
		return err
	}
	if !generate {
		return apperr.NotFound("new", "no template matches %q", opts.Prompt).
			WithFix("rephrase the request, or pass --ai to have one generated")
	}
	return ingestAndFetch(ctx, cfg, opts.Prompt)
}

func wantIngest(opts *newOptions) (bool, error) {
	if opts.AI && opts.Yes {
		return true, nil
	}
	if !isInteractive() {
		return opts.AI, nil
	}
	return confirm("Generate a new template with AI?", opts.AI)
}

func fetchEntry(ctx context.Context, src fetch.Source, templatesDir string, entry catalog.Entry, keys []string) error {
	f := fetch.New(src, templatesDir)
	sp := startSpinner("Fetching template...")
	f.Progress = func(rel string, n, total int) {
		sp.Lock()
		sp.Suffix = fmt.Sprintf(" Fetching %s (%d/%d)", rel, n, total)
		sp.Unlock()
	}
	dir, err := f.Fetch(ctx, entry, keys)
	sp.Stop()
	if err != nil {
		return err
	}

	Success("Template fetched to %s", dir)
	Info("Create a project with 'devlaunch generate %s'", entry.DirName())
	return nil
}

func ingestAndFetch(ctx context.Context, cfg *config.Config, prompt string) error {
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	llmCfg, err := effectiveLLM(cfg.LLM)
	if err != nil {
		return err
	}
	pipeline, err := ingest.NewFromConfig(llmCfg, store,
		ingest.WithTimeout(llmCfg.Timeout),
		ingest.WithLogger(newLogger(levelWarn)),
	)
	if err != nil {
		return err
	}

	sp := startSpinner("Waiting for the LLM to write a template...")
	res, err := pipeline.Ingest(ctx, prompt)
	sp.Stop()
	if err != nil {
		return err
	}

	Success("Stored new template %s", res.Entry.Prefix())
	Info("Run 'devlaunch index build' to add it to the catalog index")
	return fetchEntry(ctx, store, cfg.TemplatesDir, res.Entry, res.Keys)
}

// effectiveLLM layers llm.yaml, then devlaunch settings, then the keyring.
func effectiveLLM(override llm.Config) (llm.Config, error) {
	file, err := config.LoadLLM()
	if err != nil {
		return llm.Config{}, err
	}
	return config.MergeLLM(file, override, config.NewKeyringStore()), nil
}
