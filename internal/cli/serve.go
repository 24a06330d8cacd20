package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fastertools/devlaunch/internal/resolver"
	"github.com/fastertools/devlaunch/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolution API over HTTP",
		Long: `Serve the catalog over HTTP:

  POST /resolve     {"prompt": "..."} -> {"matched": ..., "files": [...]}
  GET  /download    ?key=<storage key>
  GET  /templates   the catalog index
  GET  /healthz
  GET  /metrics     Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if addr == "" {
				addr = cfg.ServerAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			logger := newLogger(slog.LevelInfo)
			svc := resolver.New(store,
				resolver.WithTimeout(cfg.Storage.Timeout),
				resolver.WithLogger(logger),
			)

			Info("Listening on %s", addr)
			return server.New(svc, server.WithLogger(logger)).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}
