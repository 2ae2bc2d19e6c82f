package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"assistant/app/server"
	"assistant/config"
	"assistant/loader/service"
)

// The standalone loader shares the vector store with the HTTP server. The
// chromem backend is a single-process database, so run this daemon only
// against the postgres backend while the server is up.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.Loader.WatchDir == "" {
		logger.Error("LOADER_WATCH_DIR is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := server.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize resources", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Error("closing resources", "error", err)
		}
	}()

	svc, err := service.New(service.Config{
		WatchDir:   cfg.Loader.WatchDir,
		ArchiveDir: cfg.Loader.ArchiveDir,
		BadDir:     cfg.Loader.BadDir,
		SettleTime: cfg.Loader.SettleTime,
		Workers:    cfg.Loader.Workers,
		Logger:     logger,
	}, components.Registry, components.Indexer)
	if err != nil {
		logger.Error("failed to start loader", "error", err)
		return
	}

	if err := svc.Run(ctx); err != nil {
		logger.Error("loader stopped with error", "error", err)
	}
	logger.Info("loader service stopped")
}
