package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"relfiles/internal/config"
	"relfiles/internal/rpc"
	"relfiles/internal/slogutil"
	"relfiles/internal/version"
)

var (
	serveMetricsAddr string
	serveSweepEvery  time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve related-files queries over JSON-RPC on stdio",
	Long: `Run the related-files service for an editor. Requests are newline
delimited JSON-RPC 2.0 messages on stdin; responses go to stdout and logs
go to stderr.

Methods:
  initialize, relatedFiles/get, relatedFiles/preload, relatedFiles/refresh,
  relatedFiles/invalidate, relatedFiles/sweep, shutdown, exit`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	serveCmd.Flags().DurationVar(&serveSweepEvery, "sweep-every", time.Minute, "How often to evict expired cache entries (0 disables)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	overrides := cliOverrides()
	overrides.MetricsAddr = serveMetricsAddr

	cfg, err := config.Load("", overrides)
	if err != nil {
		return err
	}

	logger, closeLog, err := serveLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	resolver := config.NewResolver(overrides, logger)
	svc, _ := newService(cfg, resolver, logger)
	resolver.EnableWatch(ctx)

	if serveSweepEvery > 0 {
		go svc.RunSweeper(ctx, serveSweepEvery)
	}

	if cfg.Metrics.Addr != "" {
		srv := startMetrics(cfg.Metrics.Addr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("Starting relfiles server", "version", version.Version, "pid", os.Getpid())
	server := rpc.NewServer(version.Version, svc, logger)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// serveLogger logs to stderr and, when logging.file is set, also to that
// file as JSON.
func serveLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	logger := newLogger(os.Stderr, cfg)
	if cfg.Logging.File == "" {
		return logger, func() {}, nil
	}

	fileLogger, f, err := slogutil.NewFileLogger(cfg.Logging.File, slogutil.LevelFromString(cfg.Logging.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	tee := slog.New(slogutil.NewTeeHandler(logger.Handler(), fileLogger.Handler()))
	return tee, func() { _ = f.Close() }, nil
}

func startMetrics(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err.Error())
		}
	}()
	return srv
}
