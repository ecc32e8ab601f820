package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/ssanime/manga-nexus-hub/internal/app"
	"github.com/ssanime/manga-nexus-hub/internal/config"
	"github.com/ssanime/manga-nexus-hub/internal/database"
	"github.com/ssanime/manga-nexus-hub/internal/fetcher"
)

// fetcherOptions tunes page fetching for every command; tests swap in a
// no-op sleep.
var fetcherOptions fetcher.Options

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mangactl",
		Short:         "Operate the manga scraper from the command line",
		Long:          `Run scrape jobs, drain the download queue and inspect source profiles against the configured database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newScrapeCmd())
	rootCmd.AddCommand(newQueueCmd())
	rootCmd.AddCommand(newSourcesCmd())
	return rootCmd
}

// withServices opens the configured database, applies migrations and hands
// fn the wired services. Queue runs from the CLI never self-chain; callers
// loop explicitly instead.
func withServices(cmd *cobra.Command, fn func(services *app.Services) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.QueueSelfChain = false

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	services, err := app.New(cfg, db, app.Options{Fetcher: fetcherOptions, Logger: logger})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	return fn(services)
}

func openDatabase(cfg config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
	}
	if err := database.ApplyMigrations(db, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	if cfg.SeedDefaultData {
		if err := database.SeedDefaults(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed defaults: %w", err)
		}
	}
	return db, nil
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
