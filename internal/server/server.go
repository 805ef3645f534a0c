package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/doubledash/doubledash/internal/auth"
	"github.com/doubledash/doubledash/internal/importer"
	"github.com/doubledash/doubledash/internal/models"
	"github.com/doubledash/doubledash/internal/storage"
	"github.com/doubledash/doubledash/internal/strava"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Store is the subset of *storage.DB the handlers read from.
type Store interface {
	QueryActivities(ctx context.Context, userID string, start, end time.Time, typeFilter string) ([]models.Activity, error)
	GetActivity(ctx context.Context, userID string, activityID int64) (*models.Activity, error)
	SaveStravaToken(ctx context.Context, tok models.StravaToken) error
	GetStravaToken(ctx context.Context, userID string) (*models.StravaToken, error)
	QuerySyncRuns(ctx context.Context, userID string, limit int) ([]storage.SyncRun, error)
	GetDataStats(ctx context.Context, userID string) (*storage.DataStats, error)
}

// Options carries the server's collaborators.
type Options struct {
	Store    Store
	Importer *importer.Importer
	// Strava is nil when no client credentials are configured.
	Strava       *strava.Client
	Calendar     analytics.Calendar
	WeeklyWindow int
	Auth         auth.Config
	APIKey       string
	Log          *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store        Store
	importer     *importer.Importer
	strava       *strava.Client
	cal          analytics.Calendar
	weeklyWindow int
	auth         auth.Config
	apiKey       string
	log          *slog.Logger
	router       chi.Router
	now          func() time.Time
}

// New creates a new Server with all routes configured.
func New(opts Options) *Server {
	s := &Server{
		store:        opts.Store,
		importer:     opts.Importer,
		strava:       opts.Strava,
		cal:          opts.Calendar,
		weeklyWindow: opts.WeeklyWindow,
		auth:         opts.Auth,
		apiKey:       opts.APIKey,
		log:          opts.Log,
		router:       chi.NewRouter(),
		now:          time.Now,
	}
	if s.weeklyWindow <= 0 {
		s.weeklyWindow = 12
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(Metrics)
	s.router.Use(CORS)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.router.Handle("/metrics", promhttp.Handler())

	// Bulk ingestion from trusted collectors (API key required)
	s.router.Route("/api/v1/ingest", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/", s.handleIngest)
	})

	// User-scoped endpoints (bearer token required)
	s.router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.auth))

		r.Get("/api/v1/me", s.handleMe)
		r.Get("/api/v1/activities", s.handleQueryActivities)
		r.Get("/api/v1/activities/{id}", s.handleGetActivity)
		r.Get("/api/v1/stats", s.handleStats)
		r.Get("/api/v1/sync-runs", s.handleSyncRuns)

		r.Get("/api/v1/strava/connect", s.handleStravaConnect)
		r.Post("/api/v1/strava/exchange", s.handleStravaExchange)
		r.Post("/api/v1/strava/sync", s.handleStravaSync)

		r.Route("/api/v1/analytics", func(r chi.Router) {
			r.Get("/summary", s.handleSummary)
			r.Get("/monthly", s.handleMonthly)
			r.Get("/weekly", s.handleWeekly)
			r.Get("/pace-distribution", s.handlePaceDistribution)
			r.Get("/distance-distribution", s.handleDistanceDistribution)
			r.Get("/heart-rate-zones", s.handleHeartRateZones)
			r.Get("/personal-records", s.handlePersonalRecords)
			r.Get("/trends", s.handleTrends)
			r.Get("/dashboard", s.handleDashboard)
		})
	})
}

// SetMCP mounts the MCP streamable HTTP handler at /mcp behind bearer auth.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(auth.Middleware(s.auth)).Handle("/mcp", h)
}
