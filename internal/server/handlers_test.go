package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/doubledash/doubledash/internal/auth"
	"github.com/doubledash/doubledash/internal/importer"
	"github.com/doubledash/doubledash/internal/mcp"
	"github.com/doubledash/doubledash/internal/models"
	"github.com/doubledash/doubledash/internal/storage"
	"github.com/doubledash/doubledash/internal/strava"
	"github.com/google/uuid"
)

var testAuth = auth.Config{Secret: "test-secret", Issuer: "doubledash"}

// memStore is an in-memory Store that also satisfies importer.Store.
type memStore struct {
	activities map[string][]models.Activity
	tokens     map[string]models.StravaToken
	runs       []storage.SyncRun
}

func newMemStore() *memStore {
	return &memStore{
		activities: map[string][]models.Activity{},
		tokens:     map[string]models.StravaToken{},
	}
}

func (m *memStore) QueryActivities(_ context.Context, userID string, start, end time.Time, typeFilter string) ([]models.Activity, error) {
	out := []models.Activity{}
	for _, a := range m.activities[userID] {
		if t, err := time.Parse(time.RFC3339, a.StartDate); err == nil && (t.Before(start) || !t.Before(end)) {
			continue
		}
		if typeFilter != "" && !strings.EqualFold(a.Type, typeFilter) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) GetActivity(_ context.Context, userID string, id int64) (*models.Activity, error) {
	for _, a := range m.activities[userID] {
		if a.ActivityID == id {
			return &a, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) SaveStravaToken(_ context.Context, tok models.StravaToken) error {
	m.tokens[tok.UserID] = tok
	return nil
}

func (m *memStore) GetStravaToken(_ context.Context, userID string) (*models.StravaToken, error) {
	tok, ok := m.tokens[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &tok, nil
}

func (m *memStore) QuerySyncRuns(_ context.Context, userID string, limit int) ([]storage.SyncRun, error) {
	out := []storage.SyncRun{}
	for _, r := range m.runs {
		if r.UserID == userID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) GetDataStats(_ context.Context, userID string) (*storage.DataStats, error) {
	return &storage.DataStats{TotalActivities: int64(len(m.activities[userID]))}, nil
}

func (m *memStore) LatestActivityStart(context.Context, string) (*time.Time, error) {
	return nil, nil
}

func (m *memStore) UpsertActivities(_ context.Context, userID string, acts []models.Activity) (int64, error) {
	m.activities[userID] = append(m.activities[userID], acts...)
	return int64(len(acts)), nil
}

func (m *memStore) InsertSyncRun(_ context.Context, run storage.SyncRun) (uuid.UUID, error) {
	run.ID = uuid.New()
	m.runs = append(m.runs, run)
	return run.ID, nil
}

func (m *memStore) UpdateSyncRun(_ context.Context, id uuid.UUID, run storage.SyncRun) error {
	for i := range m.runs {
		if m.runs[i].ID == id {
			m.runs[i].Status = run.Status
			m.runs[i].ActivitiesWritten = run.ActivitiesWritten
		}
	}
	return nil
}

func newTestServer(t *testing.T, store *memStore, sc *strava.Client) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(Options{
		Store:        store,
		Importer:     importer.New(store, sc, log, false),
		Strava:       sc,
		Calendar:     analytics.UTC,
		WeeklyWindow: 6,
		Auth:         testAuth,
		APIKey:       "ingest-key",
		Log:          log,
	})
	s.now = func() time.Time { return time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC) }
	return s
}

func do(t *testing.T, s *Server, method, target, user string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if user != "" {
		tok, err := auth.Issue(testAuth, user, time.Hour, time.Now())
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func seeded() *memStore {
	m := newMemStore()
	m.activities["alice"] = []models.Activity{
		{ActivityID: 1, UserID: "alice", Type: "Run", StartDate: "2024-02-05T08:00:00Z", Distance: 5000, MovingTime: 1500, TotalElevationGain: 20},
		{ActivityID: 2, UserID: "alice", Type: "Run", StartDate: "2024-03-05T08:00:00Z", Distance: 10000, MovingTime: 3000, TotalElevationGain: 40},
		{ActivityID: 3, UserID: "alice", Type: "Ride", StartDate: "2024-03-06T08:00:00Z", Distance: 30000, MovingTime: 3600},
	}
	m.activities["bob"] = []models.Activity{
		{ActivityID: 9, UserID: "bob", Type: "Run", StartDate: "2024-03-01T08:00:00Z", Distance: 42195, MovingTime: 14400},
	}
	return m
}

// TestHealthz verifies the unauthenticated health check.
func TestHealthz(t *testing.T) {
	rec := do(t, newTestServer(t, newMemStore(), nil), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// TestAnalyticsRequiresToken verifies user-scoped routes reject anonymous requests.
func TestAnalyticsRequiresToken(t *testing.T) {
	rec := do(t, newTestServer(t, seeded(), nil), http.MethodGet, "/api/v1/analytics/summary", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestSummaryScopedToUser verifies the summary only covers the caller's
// activities and honours the type filter.
func TestSummaryScopedToUser(t *testing.T) {
	s := newTestServer(t, seeded(), nil)

	rec := do(t, s, http.MethodGet, "/api/v1/analytics/summary", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var sum analytics.ActivitySummary
	if err := json.NewDecoder(rec.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	if sum.TotalActivities != 3 || sum.TotalDistance != 45000 {
		t.Errorf("summary = %+v, want 3 activities / 45000 m", sum)
	}
	if sum.ActivityTypes["Run"] != 2 || sum.ActivityTypes["Ride"] != 1 {
		t.Errorf("activityTypes = %v", sum.ActivityTypes)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/analytics/summary?type=run", "alice", nil)
	sum = analytics.ActivitySummary{}
	json.NewDecoder(rec.Body).Decode(&sum)
	if sum.TotalActivities != 2 {
		t.Errorf("filtered TotalActivities = %d, want 2", sum.TotalActivities)
	}
}

// TestWeeklyWindow verifies the default and explicit weeks parameter.
func TestWeeklyWindow(t *testing.T) {
	s := newTestServer(t, seeded(), nil)

	tests := []struct {
		query    string
		wantCode int
		wantRows int
	}{
		{"", http.StatusOK, 6},
		{"?weeks=3", http.StatusOK, 3},
		{"?weeks=0", http.StatusBadRequest, 0},
		{"?weeks=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, "/api/v1/analytics/weekly"+tt.query, "alice", nil)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var rows []analytics.WeeklyStat
			if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
				t.Fatal(err)
			}
			if len(rows) != tt.wantRows {
				t.Errorf("rows = %d, want %d", len(rows), tt.wantRows)
			}
			if rows[len(rows)-1].Week != "2024-03-10" {
				t.Errorf("last week = %s, want 2024-03-10", rows[len(rows)-1].Week)
			}
		})
	}
}

// TestMalformedStoredDate verifies a bad start_date surfaces as 422 naming
// the activity.
func TestMalformedStoredDate(t *testing.T) {
	store := seeded()
	store.activities["alice"] = append(store.activities["alice"],
		models.Activity{ActivityID: 77, UserID: "alice", Type: "Run", StartDate: "last tuesday"})
	s := newTestServer(t, store, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/analytics/monthly", "alice", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var body map[string]any
	json.NewDecoder(rec.Body).Decode(&body)
	if body["activity_id"] != float64(77) {
		t.Errorf("activity_id = %v, want 77", body["activity_id"])
	}
}

// TestHeartRateZonesNull verifies the endpoint answers null without HR data.
func TestHeartRateZonesNull(t *testing.T) {
	rec := do(t, newTestServer(t, seeded(), nil), http.MethodGet, "/api/v1/analytics/heart-rate-zones", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "null" {
		t.Errorf("body = %s, want null", got)
	}
}

// TestDashboard verifies the bundle endpoint returns every section.
func TestDashboard(t *testing.T) {
	rec := do(t, newTestServer(t, seeded(), nil), http.MethodGet, "/api/v1/analytics/dashboard?weeks=4", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var d analytics.Dashboard
	if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if len(d.Weekly) != 4 || len(d.Monthly) != 2 || d.Trends == nil {
		t.Errorf("dashboard weekly=%d monthly=%d trends=%v", len(d.Weekly), len(d.Monthly), d.Trends)
	}
}

// TestGetActivity verifies lookup, 404 for another user's ID, and 400 for junk.
func TestGetActivity(t *testing.T) {
	s := newTestServer(t, seeded(), nil)

	if rec := do(t, s, http.MethodGet, "/api/v1/activities/2", "alice", nil); rec.Code != http.StatusOK {
		t.Errorf("own activity status = %d, want 200", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/activities/9", "alice", nil); rec.Code != http.StatusNotFound {
		t.Errorf("other user's activity status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/activities/x", "alice", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

// TestIngest verifies API-key ingestion stores records per user and rejects
// malformed batches with 422.
func TestIngest(t *testing.T) {
	store := newMemStore()
	s := newTestServer(t, store, nil)

	body := `[{"activityId":1,"userId":"carol","type":"Run","start_date":"2024-03-01T08:00:00Z","distance":5000,"moving_time":1500}]`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/ingest/", strings.NewReader(body))
	req.Header.Set("X-API-Key", "ingest-key")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if len(store.activities["carol"]) != 1 {
		t.Errorf("carol activities = %d, want 1", len(store.activities["carol"]))
	}

	bad := `[{"activityId":2,"userId":"carol","type":"Run","start_date":"soon"}]`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/ingest/", strings.NewReader(bad))
	req.Header.Set("X-API-Key", "ingest-key")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed status = %d, want 422", rec.Code)
	}

	anon := `[{"activityId":3,"type":"Run","start_date":"2024-03-02T08:00:00Z"}]`
	req = httptest.NewRequest(http.MethodPost, "/api/v1/ingest/", strings.NewReader(anon))
	req.Header.Set("X-API-Key", "ingest-key")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing userId status = %d, want 422", rec.Code)
	}
}

// TestStravaNotConfigured verifies the Strava routes answer 503 without a client.
func TestStravaNotConfigured(t *testing.T) {
	s := newTestServer(t, newMemStore(), nil)
	for _, path := range []string{"/api/v1/strava/connect"} {
		if rec := do(t, s, http.MethodGet, path, "alice", nil); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503", path, rec.Code)
		}
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/strava/sync", "alice", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("sync status = %d, want 503", rec.Code)
	}
}

// TestStravaConnectExchange walks the connect and exchange flow against a
// fake Strava token endpoint, including state binding to the caller.
func TestStravaConnectExchange(t *testing.T) {
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer","access_token":"acc","refresh_token":"ref","expires_in":3600,"athlete":{"id":555}}`))
	}))
	defer fake.Close()

	store := newMemStore()
	s := newTestServer(t, store, strava.NewClient("cid", "csecret", "http://localhost/cb", fake.URL))

	rec := do(t, s, http.MethodGet, "/api/v1/strava/connect", "alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("connect status = %d", rec.Code)
	}
	var connect map[string]string
	json.NewDecoder(rec.Body).Decode(&connect)
	u, err := url.Parse(connect["url"])
	if err != nil {
		t.Fatal(err)
	}
	state := u.Query().Get("state")

	// The state travels in a redirect URL and must not work as a login token.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/summary", nil)
	req.Header.Set("Authorization", "Bearer "+state)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("state as bearer status = %d, want 401", rec.Code)
	}

	// Bob cannot complete Alice's authorization.
	rec = do(t, s, http.MethodPost, "/api/v1/strava/exchange", "bob",
		strings.NewReader(`{"code":"c","state":"`+state+`"}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("cross-user exchange status = %d, want 400", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/strava/exchange", "alice",
		strings.NewReader(`{"code":"c","state":"`+state+`"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("exchange status = %d, body = %s", rec.Code, rec.Body)
	}
	tok, ok := store.tokens["alice"]
	if !ok || tok.AthleteID != 555 || tok.AccessToken != "acc" {
		t.Errorf("stored token = %+v", tok)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/me", "alice", nil)
	var me map[string]any
	json.NewDecoder(rec.Body).Decode(&me)
	if me["strava_connected"] != true {
		t.Errorf("me = %v, want strava_connected", me)
	}
}

// TestStravaSyncNotConnected verifies a sync without a stored token is a conflict.
func TestStravaSyncNotConnected(t *testing.T) {
	s := newTestServer(t, newMemStore(), strava.NewClient("cid", "csecret", "", "http://127.0.0.1:1"))
	if rec := do(t, s, http.MethodPost, "/api/v1/strava/sync", "alice", nil); rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

// TestSyncRunsLimit verifies limit validation.
func TestSyncRunsLimit(t *testing.T) {
	s := newTestServer(t, newMemStore(), nil)
	if rec := do(t, s, http.MethodGet, "/api/v1/sync-runs?limit=0", "alice", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/sync-runs", "alice", nil); rec.Code != http.StatusOK {
		t.Errorf("default status = %d, want 200", rec.Code)
	}
}

// TestMetricsEndpoint verifies request metrics are exported after traffic.
func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, newMemStore(), nil)
	do(t, s, http.MethodGet, "/healthz", "", nil)

	rec := do(t, s, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "doubledash_http_requests_total") {
		t.Error("metrics output missing doubledash_http_requests_total")
	}
}

// TestParseTimeRange verifies date-only and RFC 3339 parameters, the
// end-of-day adjustment, and rejection of inverted ranges.
func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{
			name:      "date only",
			query:     "start=2024-01-01&end=2024-01-31",
			wantStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "rfc3339",
			query:     "start=2024-01-01T06:00:00Z&end=2024-01-01T18:00:00Z",
			wantStart: time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC),
		},
		{name: "bad start", query: "start=yesterday", wantErr: true},
		{name: "inverted", query: "start=2024-02-01&end=2024-01-01", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			start, end, err := parseTimeRange(r)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !start.Equal(tt.wantStart) || !end.Equal(tt.wantEnd) {
				t.Errorf("range = %v..%v, want %v..%v", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

// TestParseAnalyticsRangeDefault verifies analytics default to the whole history.
func TestParseAnalyticsRangeDefault(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	start, end, err := parseAnalyticsRange(r)
	if err != nil {
		t.Fatal(err)
	}
	if start.Year() != 1970 {
		t.Errorf("default start = %v, want epoch", start)
	}
	if !end.After(time.Now()) {
		t.Errorf("default end = %v, want after now", end)
	}
}

// TestMCPMount verifies /mcp requires a token and answers initialize once
// authenticated.
func TestMCPMount(t *testing.T) {
	s := newTestServer(t, seeded(), nil)
	s.SetMCP(mcp.NewHTTPHandler(mcp.New(s.store.(*memStore), mcp.Options{Calendar: analytics.UTC, Version: "test", Log: s.log})))

	initReq := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`

	rec := do(t, s, http.MethodPost, "/mcp", "", strings.NewReader(initReq))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initReq))
	tok, err := auth.Issue(testAuth, "alice", time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "DoubleDash") {
		t.Errorf("initialize response missing server name: %s", rec.Body.String())
	}
}
