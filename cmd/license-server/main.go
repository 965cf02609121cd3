// Package main runs the online license backend: HTTP API over the SQLite
// license database.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"convertcli/internal/config"
	"convertcli/internal/infrastructure"
	"convertcli/internal/storage"
	transport "convertcli/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("license server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; absence is the normal production case.
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.Server.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	server := transport.NewServer(cfg.Server, store, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(ctx)
}
