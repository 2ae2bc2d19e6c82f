package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"assistant/app/server"
	"assistant/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	s, err := server.NewServer(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.Run()
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigch:
		slog.Info("received shutdown signal, shutting down server")
		s.Stop()
	case err := <-errc:
		s.Stop()
		if err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
