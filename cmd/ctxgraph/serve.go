package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/ctxgraph/internal/mcp"
	"github.com/dshills/ctxgraph/internal/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP protocol on stdio",
		Long: `Serve the project over the Model Context Protocol on stdin/stdout.
With --watch, changed Go and markdown files are re-indexed automatically.
With --metrics-addr, Prometheus metrics are served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: a.runServe,
	}
	cmd.Flags().Bool("watch", false, "re-index on file changes")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	_ = a.v.BindPFlag("index.watch", cmd.Flags().Lookup("watch"))
	_ = a.v.BindPFlag("telemetry.metrics_addr", cmd.Flags().Lookup("metrics-addr"))
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	eng, err := a.openEngine()
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if a.cfg.Index.Watch {
		w, err := eng.Watch(ctx)
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	if addr := a.cfg.Telemetry.MetricsAddr; addr != "" {
		g.Go(func() error {
			return telemetry.ServeMetrics(ctx, addr, a.logger)
		})
	}
	g.Go(func() error {
		// stdin closing ends the session; stop the metrics server with it
		defer cancel()
		defer a.logger.Info("server stopped")
		err := mcp.NewServer(eng, version, a.logger).Serve(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}
