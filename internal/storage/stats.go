package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about a user's stored activities.
type DataStats struct {
	TotalActivities  int64              `json:"total_activities"`
	TotalSyncRuns    int64              `json:"total_sync_runs"`
	EarliestData     *time.Time         `json:"earliest_data"`
	LatestData       *time.Time         `json:"latest_data"`
	LastSync         *time.Time         `json:"last_sync"`
	ActivitiesByType []ActivityTypeStat `json:"activities_by_type"`
}

// ActivityTypeStat holds summary stats for a single activity type.
type ActivityTypeStat struct {
	Type          string  `json:"type"`
	Count         int64   `json:"count"`
	TotalDuration float64 `json:"total_moving_time_sec"`
	TotalDistance float64 `json:"total_distance_m"`
}

// GetDataStats returns aggregate statistics for a user's stored data.
func (db *DB) GetDataStats(ctx context.Context, userID string) (*DataStats, error) {
	stats := &DataStats{ActivitiesByType: []ActivityTypeStat{}}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(start_date), MAX(start_date) FROM activities WHERE user_id = $1`, userID,
	).Scan(&stats.TotalActivities, &stats.EarliestData, &stats.LatestData)
	if err != nil {
		return nil, fmt.Errorf("counting activities: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(created_at) FROM sync_runs WHERE user_id = $1 AND status = $2`,
		userID, SyncSuccess,
	).Scan(&stats.TotalSyncRuns, &stats.LastSync)
	if err != nil {
		return nil, fmt.Errorf("counting sync runs: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT type, COUNT(*), COALESCE(SUM(moving_time), 0), COALESCE(SUM(distance), 0)
		 FROM activities
		 WHERE user_id = $1
		 GROUP BY type
		 ORDER BY COUNT(*) DESC, type`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying activities by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s ActivityTypeStat
		if err := rows.Scan(&s.Type, &s.Count, &s.TotalDuration, &s.TotalDistance); err != nil {
			return nil, fmt.Errorf("scanning activity type stat: %w", err)
		}
		stats.ActivitiesByType = append(stats.ActivitiesByType, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
