// Command doubledash-mcp serves the DoubleDash MCP tools over stdio, reading
// data from a remote DoubleDash server with the caller's bearer token.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/doubledash/doubledash/internal/auth"
	"github.com/doubledash/doubledash/internal/mcp"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "DoubleDash server URL (or DOUBLEDASH_SERVER)")
	token := flag.String("token", "", "bearer token (or DOUBLEDASH_TOKEN)")
	timezone := flag.String("tz", "UTC", "IANA timezone for month and week boundaries")
	weeks := flag.Int("weeks", 12, "default weekly window")
	flag.Parse()

	// stdout carries the protocol; logs go to stderr.
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
	if *serverURL == "" || *token == "" {
		fmt.Fprintf(os.Stderr, "Usage: doubledash-mcp -server <URL> -token <TOKEN>\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	userID, err := auth.Subject(*token)
	if err != nil {
		log.Error("unreadable token", "error", err)
		os.Exit(1)
	}

	cal, err := analytics.NewCalendar(*timezone)
	if err != nil {
		log.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	s := mcp.New(mcp.NewHTTPClient(*serverURL, *token), mcp.Options{
		Calendar:     cal,
		WeeklyWindow: *weeks,
		Version:      Version,
		Log:          log,
	})

	log.Info("doubledash-mcp serving on stdio", "server", *serverURL, "user", userID)
	if err := mcp.ServeStdio(s, userID); err != nil {
		log.Error("stdio server stopped", "error", err)
		os.Exit(1)
	}
}
