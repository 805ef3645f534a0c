package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/doubledash/doubledash/internal/auth"
	"github.com/doubledash/doubledash/internal/importer"
	"github.com/doubledash/doubledash/internal/models"
	"github.com/doubledash/doubledash/internal/storage"
	"github.com/doubledash/doubledash/internal/strava"
	"github.com/go-chi/chi/v5"
)

// maxIngestBody bounds a single ingest request.
const maxIngestBody = 32 << 20

// stravaStateTTL is how long a connect URL stays valid.
const stravaStateTTL = 10 * time.Minute

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var acts []models.Activity
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBody)).Decode(&acts); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	written, err := s.importer.Ingest(r.Context(), acts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"received": len(acts),
		"written":  written,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	resp := map[string]any{"user_id": userID, "strava_connected": false}

	if s.store != nil {
		tok, err := s.store.GetStravaToken(r.Context(), userID)
		switch {
		case err == nil:
			resp["strava_connected"] = true
			resp["strava_athlete_id"] = tok.AthleteID
		case !errors.Is(err, storage.ErrNotFound):
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueryActivities(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	acts, err := s.store.QueryActivities(r.Context(), userIDFromContext(r), start, end, r.URL.Query().Get("type"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acts)
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid activity ID"})
		return
	}

	act, err := s.store.GetActivity(r.Context(), userIDFromContext(r), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetDataStats(r.Context(), userIDFromContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSyncRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	runs, err := s.store.QuerySyncRuns(r.Context(), userIDFromContext(r), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleStravaConnect returns the consent URL. The state parameter is a
// short-lived token for the caller, checked again on exchange.
func (s *Server) handleStravaConnect(w http.ResponseWriter, r *http.Request) {
	if s.strava == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "strava is not configured"})
		return
	}
	state, err := auth.IssueState(s.auth, userIDFromContext(r), stravaStateTTL, s.now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": s.strava.AuthCodeURL(state)})
}

type exchangeRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func (s *Server) handleStravaExchange(w http.ResponseWriter, r *http.Request) {
	if s.strava == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "strava is not configured"})
		return
	}

	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	userID := userIDFromContext(r)
	if stateUser, err := auth.ParseState(req.State, s.auth, s.now()); err != nil || stateUser != userID {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid or expired state"})
		return
	}

	tok, athleteID, err := s.strava.Exchange(r.Context(), req.Code)
	if err != nil {
		s.log.Warn("strava exchange failed", "user", userID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "strava authorization failed"})
		return
	}

	if err := s.store.SaveStravaToken(r.Context(), strava.TokenToModel(userID, athleteID, tok)); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info("strava connected", "user", userID, "athlete", athleteID)
	writeJSON(w, http.StatusOK, map[string]any{"connected": true, "athlete_id": athleteID})
}

func (s *Server) handleStravaSync(w http.ResponseWriter, r *http.Request) {
	if s.strava == nil || s.importer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "strava is not configured"})
		return
	}

	stats, err := s.importer.SyncUser(r.Context(), userIDFromContext(r))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "strava is not connected"})
		return
	}
	if err != nil {
		s.log.Error("strava sync failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "stats": stats})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeError maps domain errors onto status codes. Bad activity data is the
// client's problem (422); anything unrecognised is a 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var dataErr *analytics.DataError
	switch {
	case errors.As(err, &dataErr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":       err.Error(),
			"index":       dataErr.Index,
			"activity_id": dataErr.ActivityID,
			"value":       dataErr.Value,
		})
	case errors.Is(err, importer.ErrMissingUserID):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func userIDFromContext(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseTimeRange reads start/end query parameters (RFC 3339 or YYYY-MM-DD).
// Without start the last 30 days are returned.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	return parseRange(r, func(now time.Time) time.Time { return now.AddDate(0, 0, -30) })
}

// parseAnalyticsRange is parseTimeRange with the whole history as default.
func parseAnalyticsRange(r *http.Request) (start, end time.Time, err error) {
	return parseRange(r, func(time.Time) time.Time { return time.Unix(0, 0).UTC() })
}

func parseRange(r *http.Request, defaultStart func(now time.Time) time.Time) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	now := time.Now()

	if startStr == "" {
		start = defaultStart(now)
	} else if start, err = parseDateParam(startStr, false); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
	}

	if endStr == "" {
		// Include activities stamped slightly ahead of the server clock.
		end = now.Add(24 * time.Hour)
	} else if end, err = parseDateParam(endStr, true); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end must be after start")
	}
	return start, end, nil
}

func parseDateParam(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24 * time.Hour)
	}
	return t, nil
}
