package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sync run statuses.
const (
	SyncRunning = "running"
	SyncSuccess = "success"
	SyncError   = "error"
)

// SyncRun records the outcome of one activity import, whether pulled from
// Strava or pushed through the ingest endpoint.
type SyncRun struct {
	ID                 uuid.UUID `json:"id"`
	UserID             string    `json:"user_id"`
	CreatedAt          time.Time `json:"created_at"`
	Source             string    `json:"source"`
	Status             string    `json:"status"`
	ActivitiesReceived int       `json:"activities_received"`
	ActivitiesWritten  int64     `json:"activities_written"`
	DurationMs         *int      `json:"duration_ms"`
	ErrorMessage       *string   `json:"error_message"`
}

// InsertSyncRun creates a new sync run entry and returns its ID.
func (db *DB) InsertSyncRun(ctx context.Context, run SyncRun) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO sync_runs (id, user_id, source, status, activities_received,
		 activities_written, duration_ms, error_message)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		run.ID, run.UserID, run.Source, run.Status, run.ActivitiesReceived,
		run.ActivitiesWritten, run.DurationMs, run.ErrorMessage,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting sync run: %w", err)
	}
	return run.ID, nil
}

// UpdateSyncRun updates an existing sync run (typically from "running" to "success" or "error").
func (db *DB) UpdateSyncRun(ctx context.Context, id uuid.UUID, run SyncRun) error {
	_, err := db.Pool.Exec(ctx,
		`UPDATE sync_runs SET
		 status = $2, activities_received = $3, activities_written = $4,
		 duration_ms = $5, error_message = $6
		 WHERE id = $1`,
		id, run.Status, run.ActivitiesReceived, run.ActivitiesWritten,
		run.DurationMs, run.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("updating sync run %s: %w", id, err)
	}
	return nil
}

// QuerySyncRuns returns the most recent sync runs for a user.
func (db *DB) QuerySyncRuns(ctx context.Context, userID string, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, created_at, source, status, activities_received,
		 activities_written, duration_ms, error_message
		 FROM sync_runs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	result := []SyncRun{}
	for rows.Next() {
		var r SyncRun
		if err := rows.Scan(&r.ID, &r.UserID, &r.CreatedAt, &r.Source, &r.Status,
			&r.ActivitiesReceived, &r.ActivitiesWritten, &r.DurationMs, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
