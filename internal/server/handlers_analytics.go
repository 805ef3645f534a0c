package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/doubledash/doubledash/internal/models"
	"github.com/doubledash/doubledash/internal/observability"
)

// maxWeeklyWindow caps the weeks parameter.
const maxWeeklyWindow = 156

// analyticsView loads the caller's activities for the request's range and
// type filter, runs compute over them, and writes the result.
func (s *Server) analyticsView(w http.ResponseWriter, r *http.Request, view string, compute func([]models.Activity) (any, error)) {
	start, end, err := parseAnalyticsRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	acts, err := s.store.QueryActivities(r.Context(), userIDFromContext(r), start, end, r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	began := time.Now()
	result, err := compute(acts)
	observability.ObserveAnalytics(view, time.Since(began), err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) weeksParam(r *http.Request) (int, error) {
	v := r.URL.Query().Get("weeks")
	if v == "" {
		return s.weeklyWindow, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxWeeklyWindow {
		return 0, fmt.Errorf("weeks must be between 1 and %d", maxWeeklyWindow)
	}
	return n, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.analyticsView(w, r, "summary", func(acts []models.Activity) (any, error) {
		return analytics.Summary(acts), nil
	})
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	s.analyticsView(w, r, "monthly", func(acts []models.Activity) (any, error) {
		return analytics.MonthlyStats(s.cal, acts)
	})
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	weeks, err := s.weeksParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.analyticsView(w, r, "weekly", func(acts []models.Activity) (any, error) {
		return analytics.WeeklyStats(s.cal, acts, weeks, s.now())
	})
}

func (s *Server) handlePaceDistribution(w http.ResponseWriter, r *http.Request) {
	s.analyticsView(w, r, "pace_distribution", func(acts []models.Activity) (any, error) {
		return analytics.PaceDistribution(acts), nil
	})
}

func (s *Server) handleDistanceDistribution(w http.ResponseWriter, r *http.Request) {
	s.analyticsView(w, r, "distance_distribution", func(acts []models.Activity) (any, error) {
		return analytics.DistanceDistribution(acts), nil
	})
}

func (s *Server) handleHeartRateZones(w http.ResponseWriter, r *http.Request) {
	s.analyticsView(w, r, "heart_rate_zones", func(acts []models.Activity) (any, error) {
		return analytics.HeartRateZones(acts), nil
	})
}

func (s *Server) handlePersonalRecords(w http.ResponseWriter, r *http.Request) {
	s.analyticsView(w, r, "personal_records", func(acts []models.Activity) (any, error) {
		return analytics.PersonalRecords(acts), nil
	})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	s.analyticsView(w, r, "trends", func(acts []models.Activity) (any, error) {
		return analytics.Trends(s.cal, acts)
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	weeks, err := s.weeksParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.analyticsView(w, r, "dashboard", func(acts []models.Activity) (any, error) {
		return analytics.BuildDashboard(s.cal, acts, weeks, s.now())
	})
}
