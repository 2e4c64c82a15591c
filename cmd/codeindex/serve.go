package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/codeindex/internal/http"
	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

const (
	healthCheckInterval = 30 * time.Second
	healthCheckTimeout  = 5 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Start the HTTP API and Prometheus /metrics endpoint. The server stops
gracefully on SIGINT or SIGTERM.

Examples:
  codeindex serve
  codeindex serve --host 0.0.0.0 --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts, true)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			cfg := httpserver.ConfigFromApp(a.cfg.Server, version)
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			srv, err := httpserver.NewServer(a.store, a.embedder, a.logger.Named("http").Underlying(), cfg)
			if err != nil {
				return err
			}
			storeLogger := a.logger.Named("vectorstore").Underlying()
			monitor := vectorstore.NewHealthMonitor(
				vectorstore.NewPingChecker(a.store, healthCheckTimeout, storeLogger),
				healthCheckInterval, storeLogger)
			monitor.Start(ctx)
			defer monitor.Stop()
			srv.SetHealth(monitor)

			a.logger.Info(ctx, "serving",
				zap.String("addr", srv.Addr()),
				zap.String("metrics_endpoint", "/metrics"))
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default server.port)")
	return cmd
}
