package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/campushive/hivelab"
	"github.com/campushive/hivelab/internal/cascade"
	"github.com/campushive/hivelab/internal/execution"
	"github.com/campushive/hivelab/internal/metrics"
	hivehttp "github.com/campushive/hivelab/pkg/adapters/http"
	"github.com/campushive/hivelab/pkg/domain"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the execution boundary HTTP server",
	Long: `Serves tool definitions from the catalog directory, persists user and
shared state (memory or redis), executes element actions and streams shared
state deltas over websockets. Prometheus metrics are served on /metrics.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	serveCmd.Flags().String("store", "", "State store: memory or redis")
	serveCmd.Flags().String("dir", "", "Directory of tool definitions (default ./tools)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	d, err := newDesigner()
	if err != nil {
		return err
	}
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("closing backend failed", "error", err)
		}
	}()

	var (
		hooks   domain.RuntimeHooks
		collect *metrics.Collector
	)
	if cfg.Metrics {
		collect = metrics.New()
		hooks = collect.Hooks()
	}

	svc := execution.New(b.catalog, b.store,
		execution.WithPublisher(b.feed),
		execution.WithElements(d.Elements()),
		execution.WithCascade(cascade.New(d.Elements(),
			cascade.WithMaxDepth(cfg.Engine.CascadeDepth),
			cascade.WithLogger(logger),
		)),
		execution.WithLocks(b.locks),
		execution.WithTimelineCap(cfg.Engine.TimelineCap),
		execution.WithHooks(hooks),
		execution.WithLogger(logger),
	)

	opts := []hivehttp.Option{
		hivehttp.WithFeed(b.feed),
		hivehttp.WithSnapshots(svc),
		hivehttp.WithValidator(d.Validator()),
		hivehttp.WithParser(d.Parser()),
		hivehttp.WithVersion(hivelab.Version),
		hivehttp.WithPingInterval(cfg.Server.PingInterval),
		hivehttp.WithLogger(logger),
	}
	if collect != nil {
		opts = append(opts, hivehttp.WithMetrics(collect.Handler()))
	}
	handler := hivehttp.NewHandler(svc, opts...)
	if collect != nil {
		handler = collect.Middleware(handler)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("hivelab server listening", "addr", srv.Addr, "catalog", cfg.Catalog.Dir, "store", cfg.Store)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down", "grace", cfg.Server.ShutdownWait)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownWait)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", cfg.Server.ShutdownWait, err)
		}
		logger.Info("hivelab server stopped")
		return nil
	}
}
