package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ssanime/manga-nexus-hub/internal/app"
	"github.com/ssanime/manga-nexus-hub/internal/config"
	"github.com/ssanime/manga-nexus-hub/internal/database"
	apihttp "github.com/ssanime/manga-nexus-hub/internal/http"
	"github.com/ssanime/manga-nexus-hub/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	db, err := database.Open(cfg.SQLitePath)
	if err != nil {
		slog.Error("failed to open sqlite", "path", cfg.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.ApplyMigrations(db, cfg.MigrationsPath); err != nil {
		slog.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	if cfg.SeedDefaultData {
		if err := database.SeedDefaults(db); err != nil {
			slog.Error("failed to seed defaults", "error", err)
			os.Exit(1)
		}
	}

	services, err := app.New(cfg, db, app.Options{Logger: logger})
	if err != nil {
		slog.Error("failed to build services", "error", err)
		os.Exit(1)
	}

	server := apihttp.NewServer(cfg, services)

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	services.FollowUps.Start(backgroundCtx)

	var poller *scheduler.Poller
	if cfg.QueuePollingEnabled {
		poller, err = scheduler.NewPoller(services.QueueProcessor, services.Notifier, scheduler.PollerConfig{
			Interval: time.Duration(cfg.QueuePollingMinutes) * time.Minute,
			Schedule: cfg.QueuePollingSchedule,
		}, logger)
		if err != nil {
			slog.Error("failed to configure queue poller", "error", err)
			os.Exit(1)
		}
		if err := poller.Start(backgroundCtx); err != nil {
			slog.Error("failed to start queue poller", "error", err)
			os.Exit(1)
		}
	}

	go func() {
		if err := server.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	slog.Info("api started", "port", cfg.Port, "env", cfg.Environment, "selfChain", cfg.QueueSelfChain, "polling", cfg.QueuePollingEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("shutting down server")
	backgroundCancel()
	services.FollowUps.StopWait(2 * time.Second)
	if poller != nil {
		poller.StopWait(2 * time.Second)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
