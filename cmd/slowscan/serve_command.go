package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/slowscan/internal/config"
	"github.com/MrWong99/slowscan/internal/observe"
	"github.com/MrWong99/slowscan/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP encode service",
		Long: `Serve POST /v1/encode, GET /v1/modes, GET /v1/sessions, the /healthz and
/readyz probes and Prometheus metrics on /metrics. When started with --config
the file is watched: log level and encode defaults are applied live, other
changes are logged and need a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			srvCfg := cfg.Server
			if cmd.Flags().Changed("listen") {
				srvCfg.ListenAddr = listen
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTelemetry, err := observe.InitProvider(runCtx, observe.ProviderConfig{ServiceVersion: version})
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTelemetry(sctx); err != nil {
					slog.Warn("telemetry shutdown error", "err", err)
				}
			}()

			srv := server.New(srvCfg, cfg.Encode)

			if ctx.configPath != "" {
				w, err := config.NewWatcher(ctx.configPath, func(_, _ *config.Config, d config.ConfigDiff) {
					applyReload(ctx, srv, d)
				})
				if err != nil {
					return err
				}
				defer w.Stop()
			}

			slog.Info("slowscan starting", "version", version, "listen_addr", srvCfg.ListenAddr, "default_mode", cfg.Encode.Mode)
			return srv.ListenAndServe(runCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config)")
	return cmd
}

// applyReload applies the hot-reloadable parts of a config change.
func applyReload(ctx *commandContext, srv *server.Server, d config.ConfigDiff) {
	if d.LogLevelChanged {
		ctx.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", string(d.NewLogLevel))
	}
	if d.EncodeChanged {
		srv.SetEncodeDefaults(d.NewEncode)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart", "keys", d.RestartRequired)
	}
}
