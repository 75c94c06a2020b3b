package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/quizmatch/internal/api"
	"github.com/mcoot/quizmatch/internal/config"
	"github.com/mcoot/quizmatch/internal/factory"
)

func main() {
	// Load configuration from .env and QUIZMATCH_* variables
	appCfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	level, _ := appCfg.SlogLevel()

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	passwordHash, err := appCfg.PasswordHash()
	if err != nil {
		logger.Error("invalid admin password", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if passwordHash == nil {
		logger.Warn("no admin password configured; deleting all matches is disabled")
	}

	// Create application factory
	app, err := factory.New(factory.ConfigFrom(appCfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create server
	serverConfig := api.ServerConfig{
		Host:            appCfg.Host,
		Port:            appCfg.Port,
		ReadTimeout:     appCfg.ReadTimeout,
		WriteTimeout:    appCfg.WriteTimeout,
		ShutdownTimeout: appCfg.ShutdownTimeout,
	}
	server := api.NewServer(app.Router(logger, passwordHash), serverConfig, logger)
	server.OnShutdown(func() {
		logger.Info("closing websocket connections", slog.Int("connections", app.Hub.ClientCount()))
	})
	if err := server.Listen(); err != nil {
		logger.Error("failed to listen", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Start the websocket hub and the session engine
	loopCtx, stopLoops := context.WithCancel(context.Background())
	app.Start(loopCtx)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", appCfg.StorageType),
		slog.Bool("publish_results", appCfg.NATSURL != ""))

	// Wait for shutdown or error
	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	// HTTP is down; stop the engine and let pending stats writes finish
	stopLoops()
	if err := app.Close(); err != nil {
		exitCode = 1
	}

	logger.Info("server stopped")
	os.Exit(exitCode)
}
