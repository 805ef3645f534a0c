package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/doubledash/doubledash/internal/auth"
	"github.com/doubledash/doubledash/internal/config"
	"github.com/doubledash/doubledash/internal/importer"
	"github.com/doubledash/doubledash/internal/mcp"
	"github.com/doubledash/doubledash/internal/server"
	"github.com/doubledash/doubledash/internal/storage"
	"github.com/doubledash/doubledash/internal/strava"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	issueToken := flag.String("issue-token", "", "print a bearer token for this user ID and exit")
	tokenTTL := flag.Duration("token-ttl", 30*24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	authCfg := auth.Config{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer}

	if *issueToken != "" {
		tok, err := auth.Issue(authCfg, *issueToken, *tokenTTL, time.Now())
		if err != nil {
			log.Error("failed to issue token", "error", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	log.Info("DoubleDash starting", "version", Version)

	cal, err := analytics.NewCalendar(cfg.Analytics.Timezone)
	if err != nil {
		log.Error("invalid analytics timezone", "timezone", cfg.Analytics.Timezone, "error", err)
		os.Exit(1)
	}

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx := context.Background()
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

	// Strava is optional; without credentials only API-key ingestion is available.
	var sc *strava.Client
	var source importer.Source
	if cfg.Strava.ClientID != "" {
		sc = strava.NewClient(cfg.Strava.ClientID, cfg.Strava.ClientSecret, cfg.Strava.RedirectURL, cfg.Strava.BaseURL)
		source = sc
		log.Info("strava enabled", "redirect_url", cfg.Strava.RedirectURL)
	} else {
		log.Warn("strava not configured: connect and sync endpoints disabled")
	}

	imp := importer.New(db, source, log, false)

	// Create server
	srv := server.New(server.Options{
		Store:        db,
		Importer:     imp,
		Strava:       sc,
		Calendar:     cal,
		WeeklyWindow: cfg.Analytics.WeeklyWindow,
		Auth:         authCfg,
		APIKey:       cfg.Auth.APIKey,
		Log:          log,
	})

	mcpServer := mcp.New(db, mcp.Options{
		Calendar:     cal,
		WeeklyWindow: cfg.Analytics.WeeklyWindow,
		Version:      Version,
		Log:          log,
	})
	srv.SetMCP(mcp.NewHTTPHandler(mcpServer))

	// Start server on tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
