package main

import (
	"context"

	"github.com/FranksOps/verifis/internal/metrics"
	"github.com/FranksOps/verifis/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the source lookup API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			a, err := newApp(cmd.Context(), cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Metrics.Port > 0 {
				ms := metrics.Start(cfg.Metrics.Port, opts.logger)
				defer ms.Stop(context.Background())
				opts.logger.Info("metrics server listening", "port", cfg.Metrics.Port)
			}

			srv := server.New(a.pipeline, server.Config{
				Addr:            cfg.Server.Addr,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				Logger:          opts.logger,
			})
			return srv.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().String("addr", ":8080", "API listen address")
	cmd.Flags().Int("metrics-port", 0, "Prometheus metrics port (0 disables)")
	return cmd
}
