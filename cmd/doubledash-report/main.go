package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/doubledash/doubledash/internal/auth"
	"github.com/doubledash/doubledash/internal/cache"
	"github.com/doubledash/doubledash/internal/models"
	"github.com/doubledash/doubledash/internal/report"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "DoubleDash server URL (or DOUBLEDASH_SERVER)")
	token := flag.String("token", "", "bearer token (or DOUBLEDASH_TOKEN)")
	activityType := flag.String("type", "", "only report activities of this type (e.g. Run)")
	timezone := flag.String("tz", "UTC", "IANA timezone for month and week boundaries")
	weeks := flag.Int("weeks", 12, "weeks in the weekly chart")
	maxAge := flag.Duration("max-age", 15*time.Minute, "refetch when the cached copy is older than this")
	refresh := flag.Bool("refresh", false, "ignore the cache and refetch")
	offline := flag.Bool("offline", false, "use the cached copy regardless of age")
	width := flag.Int("width", 60, "chart width")
	height := flag.Int("height", 10, "chart height")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("doubledash-report", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("failed to read .env", "error", err)
	}
	if *serverURL == "" {
		*serverURL = os.Getenv("DOUBLEDASH_SERVER")
	}
	if *token == "" {
		*token = os.Getenv("DOUBLEDASH_TOKEN")
	}
	if *token == "" {
		fmt.Fprintf(os.Stderr, "Usage: doubledash-report -server <URL> -token <TOKEN> [-type Run] [-weeks N]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *serverURL == "" && !*offline {
		fmt.Fprintf(os.Stderr, "Error: -server is required (or use -offline)\n")
		os.Exit(1)
	}

	cal, err := analytics.NewCalendar(*timezone)
	if err != nil {
		log.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	// Cache is keyed by the token's subject; signature is checked by the server.
	userID, err := auth.Subject(*token)
	if err != nil {
		log.Error("unreadable token", "error", err)
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}
	c, err := cache.Open(filepath.Join(homeDir, ".doubledash"))
	if err != nil {
		log.Error("failed to open cache", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx := context.Background()
	now := time.Now()

	acts, err := loadActivities(ctx, log, c, *serverURL, *token, userID, *maxAge, *refresh, *offline, now)
	if err != nil {
		log.Error("failed to load activities", "error", err)
		os.Exit(1)
	}

	if *activityType != "" {
		acts = analytics.FilterByType(acts, *activityType)
	}

	d, err := analytics.BuildDashboard(cal, acts, *weeks, now)
	if err != nil {
		log.Error("failed to aggregate activities", "error", err)
		os.Exit(1)
	}

	if err := report.Render(os.Stdout, d, report.Options{Width: *width, Height: *height}); err != nil {
		log.Error("failed to write report", "error", err)
		os.Exit(1)
	}
}

// loadActivities serves the cached snapshot when fresh, and otherwise
// refetches the full history and replaces the cache. A failed fetch falls
// back to a stale snapshot when one exists.
func loadActivities(ctx context.Context, log *slog.Logger, c *cache.Cache, serverURL, token, userID string, maxAge time.Duration, refresh, offline bool, now time.Time) ([]models.Activity, error) {
	if refresh {
		if err := c.Invalidate(userID); err != nil {
			return nil, err
		}
	}

	if offline {
		e, err := c.Get(userID)
		if err != nil {
			return nil, err
		}
		log.Info("using cached activities", "count", len(e.Activities), "fetched_at", e.FetchedAt)
		return e.Activities, nil
	}

	stale, err := c.IsStale(userID, maxAge, now)
	if err != nil {
		return nil, err
	}
	if !stale {
		e, err := c.Get(userID)
		if err == nil {
			log.Info("using cached activities", "count", len(e.Activities), "fetched_at", e.FetchedAt)
			return e.Activities, nil
		}
	}

	client := report.NewClient(strings.TrimRight(serverURL, "/"), token)
	acts, err := client.FetchActivities(ctx, time.Unix(0, 0), now.Add(24*time.Hour))
	if err != nil {
		e, cacheErr := c.Get(userID)
		if cacheErr != nil {
			return nil, err
		}
		log.Warn("fetch failed, using stale cache", "error", err, "fetched_at", e.FetchedAt)
		return e.Activities, nil
	}

	if err := c.Put(userID, acts, now); err != nil {
		log.Warn("failed to update cache", "error", err)
	}
	log.Info("fetched activities", "count", len(acts))
	return acts, nil
}
