package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/doubledash/doubledash/internal/config"
	"github.com/doubledash/doubledash/internal/importer"
	"github.com/doubledash/doubledash/internal/storage"
	"github.com/doubledash/doubledash/internal/strava"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	userID := flag.String("user", "", "sync only this user (default: every connected user)")
	full := flag.Bool("full", false, "refetch the whole history instead of resuming after the latest stored activity")
	pageSize := flag.Int("page-size", strava.MaxPerPage, "activities per Strava page")
	dryRun := flag.Bool("dry-run", false, "fetch and count without writing to the database")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Strava.ClientID == "" {
		fmt.Fprintf(os.Stderr, "Error: strava.client_id and strava.client_secret must be configured\n")
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()

	// Run migrations
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *dryRun {
		log.Info("DRY RUN mode: no data will be written to the database")
	}

	// Connect database
	db, err := storage.New(ctx, dsn, storage.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	users := []string{*userID}
	if *userID == "" {
		users, err = db.ListStravaUsers(ctx)
		if err != nil {
			log.Error("failed to list connected users", "error", err)
			os.Exit(1)
		}
		log.Info("syncing connected users", "count", len(users))
	}

	sc := strava.NewClient(cfg.Strava.ClientID, cfg.Strava.ClientSecret, cfg.Strava.RedirectURL, cfg.Strava.BaseURL)
	imp := importer.New(db, sc, log, *dryRun)
	imp.SetFull(*full)
	imp.SetPageSize(*pageSize)

	stats, err := imp.SyncAll(ctx, users)
	if err != nil {
		log.Error("sync failed", "error", err)
		printStats(log, stats)
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("sync complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	if stats == nil {
		return
	}
	log.Info("sync stats",
		"users", stats.Users,
		"users_errored", stats.UsersErrored,
		"pages_fetched", stats.PagesFetched,
		"activities_received", stats.ActivitiesReceived,
		"activities_written", stats.ActivitiesWritten,
		"activities_skipped", stats.ActivitiesSkipped,
		"tokens_refreshed", stats.TokensRefreshed,
	)
}
