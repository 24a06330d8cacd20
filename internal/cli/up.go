package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/compose"
)

func newUpCmd() *cobra.Command {
	return newComposeCmd(compose.ActionUp, "Start a project with docker compose up -d")
}

func newDownCmd() *cobra.Command {
	return newComposeCmd(compose.ActionDown, "Stop a project with docker compose down")
}

// newComposeCmd builds up and down. Flag parsing is disabled so that
// compose flags such as -v reach compose instead of being taken as
// devlaunch flags.
func newComposeCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <project> [compose flags...] [--allow-unsafe]",
		Short: short,
		Long: fmt.Sprintf(`%s.

Only these compose flags are passed through:
  %s

Anything else is rejected unless --allow-unsafe is given.`,
			short, strings.Join(compose.AllowedFlags(action), "\n  ")),
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := parseComposeArgs(args)
			if err != nil {
				return err
			}
			if inv.help {
				return cmd.Help()
			}
			return runCompose(cmd, action, inv)
		},
	}
}

type composeInvocation struct {
	project     string
	flags       []string
	allowUnsafe bool
	help        bool
}

func parseComposeArgs(args []string) (composeInvocation, error) {
	var inv composeInvocation
	for _, arg := range args {
		switch {
		case arg == "--allow-unsafe":
			inv.allowUnsafe = true
		case arg == "-h" || arg == "--help":
			inv.help = true
		case inv.project == "" && !strings.HasPrefix(arg, "-"):
			inv.project = arg
		default:
			inv.flags = append(inv.flags, arg)
		}
	}
	if inv.project == "" && !inv.help {
		return inv, apperr.Input("compose", "project name is required").
			WithFix("run 'devlaunch list projects' to see generated projects")
	}
	return inv, nil
}

func runCompose(cmd *cobra.Command, action string, inv composeInvocation) error {
	if err := compose.ValidateFlags(action, inv.flags, inv.allowUnsafe); err != nil {
		return err
	}
	if inv.allowUnsafe {
		Warn("Passing flags to compose without validation")
	}

	cfg := loadConfig()
	dir, err := openWorkspace(cfg).ProjectDir(inv.project)
	if err != nil {
		return err
	}
	if _, err := compose.FindFile(dir); err != nil {
		return err
	}

	runner := compose.NewExecutor(
		compose.WithBinary(cfg.ComposeBinary),
		compose.WithDir(dir),
		compose.WithEnv([]string{"COMPOSE_PROJECT_NAME=" + inv.project}),
		compose.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	)
	if !runner.IsInstalled() {
		return apperr.New(apperr.KindBackend, "compose", cfg.ComposeBinary+" compose is not available").
			WithFix("install Docker with the compose plugin, or set compose.binary")
	}

	ctx := cmd.Context()
	switch action {
	case compose.ActionUp:
		Info("Starting %s...", inv.project)
		err = runner.Up(ctx, inv.flags...)
	default:
		Info("Stopping %s...", inv.project)
		err = runner.Down(ctx, inv.flags...)
	}
	if err != nil {
		return apperr.Wrap(apperr.KindBackend, "compose", "", err)
	}

	if action == compose.ActionUp {
		Success("Project %s is up", inv.project)
	} else {
		Success("Project %s is down", inv.project)
	}
	return nil
}
