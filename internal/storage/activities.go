package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doubledash/doubledash/internal/models"
	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("not found")

const activityColumns = `activity_id, user_id, name, type, start_date, start_date_local, timezone,
	 distance, moving_time, elapsed_time, total_elevation_gain, average_speed, max_speed,
	 has_heartrate, average_heartrate, max_heartrate`

const activityColumnCount = 16

// upsertActivitiesQuery builds a multi-row upsert for n activities. A repeat
// import of the same activity replaces the stored values.
func upsertActivitiesQuery(n int) string {
	var b strings.Builder
	b.WriteString(`INSERT INTO activities (` + activityColumns + `) VALUES `)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		base := i * activityColumnCount
		for c := 1; c <= activityColumnCount; c++ {
			if c > 1 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", base+c)
		}
		b.WriteByte(')')
	}
	b.WriteString(` ON CONFLICT (user_id, activity_id) DO UPDATE SET
	 name = EXCLUDED.name, type = EXCLUDED.type, start_date = EXCLUDED.start_date,
	 start_date_local = EXCLUDED.start_date_local, timezone = EXCLUDED.timezone,
	 distance = EXCLUDED.distance, moving_time = EXCLUDED.moving_time,
	 elapsed_time = EXCLUDED.elapsed_time, total_elevation_gain = EXCLUDED.total_elevation_gain,
	 average_speed = EXCLUDED.average_speed, max_speed = EXCLUDED.max_speed,
	 has_heartrate = EXCLUDED.has_heartrate, average_heartrate = EXCLUDED.average_heartrate,
	 max_heartrate = EXCLUDED.max_heartrate, updated_at = NOW()`)
	return b.String()
}

// upsertBatchSize keeps each statement under the Postgres 65535 parameter limit.
const upsertBatchSize = 500

// dedupeActivities collapses repeated activity IDs, keeping the last
// occurrence's values at the first occurrence's position. Postgres refuses an
// upsert that touches the same row twice in one statement.
func dedupeActivities(acts []models.Activity) []models.Activity {
	pos := make(map[int64]int, len(acts))
	out := make([]models.Activity, 0, len(acts))
	for _, a := range acts {
		if i, ok := pos[a.ActivityID]; ok {
			out[i] = a
			continue
		}
		pos[a.ActivityID] = len(out)
		out = append(out, a)
	}
	return out
}

// UpsertActivities inserts or replaces activities for a user. Repeated IDs
// in acts are written once with their last values. Returns the number of
// rows written.
func (db *DB) UpsertActivities(ctx context.Context, userID string, acts []models.Activity) (int64, error) {
	acts = dedupeActivities(acts)
	var total int64
	for start := 0; start < len(acts); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(acts))
		batch := acts[start:end]

		args := make([]any, 0, len(batch)*activityColumnCount)
		for _, a := range batch {
			startDate, err := time.Parse(time.RFC3339, a.StartDate)
			if err != nil {
				return total, fmt.Errorf("activity %d: parsing start_date %q: %w", a.ActivityID, a.StartDate, err)
			}
			args = append(args, a.ActivityID, userID, a.Name, a.Type, startDate,
				a.StartDateLocal, a.Timezone, a.Distance, a.MovingTime, a.ElapsedTime,
				a.TotalElevationGain, a.AverageSpeed, a.MaxSpeed,
				a.HasHeartrate, a.AverageHeartrate, a.MaxHeartrate)
		}

		tag, err := db.Pool.Exec(ctx, upsertActivitiesQuery(len(batch)), args...)
		if err != nil {
			return total, fmt.Errorf("upserting activities: %w", err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// QueryActivities retrieves a user's activities with start_date in [start, end),
// oldest first. An empty typeFilter matches every type; otherwise the match
// is case-insensitive.
func (db *DB) QueryActivities(ctx context.Context, userID string, start, end time.Time, typeFilter string) ([]models.Activity, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+activityColumns+`
		 FROM activities
		 WHERE user_id = $1 AND start_date >= $2 AND start_date < $3
		   AND ($4 = '' OR LOWER(type) = LOWER($4))
		 ORDER BY start_date ASC, activity_id ASC`,
		userID, start, end, typeFilter)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	return scanActivityRows(rows)
}

// GetActivity retrieves a single activity. Returns ErrNotFound when the user
// has no activity with that ID.
func (db *DB) GetActivity(ctx context.Context, userID string, activityID int64) (*models.Activity, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+activityColumns+`
		 FROM activities
		 WHERE user_id = $1 AND activity_id = $2`,
		userID, activityID)

	a, err := scanActivity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying activity %d: %w", activityID, err)
	}
	return &a, nil
}

// LatestActivityStart returns the newest start_date stored for a user, or
// nil when the user has no activities. Used as the incremental sync cursor.
func (db *DB) LatestActivityStart(ctx context.Context, userID string) (*time.Time, error) {
	var latest *time.Time
	err := db.Pool.QueryRow(ctx,
		`SELECT MAX(start_date) FROM activities WHERE user_id = $1`, userID,
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("querying latest activity: %w", err)
	}
	return latest, nil
}

// DeleteActivities removes the given activity IDs for a user. Returns the
// number of rows deleted.
func (db *DB) DeleteActivities(ctx context.Context, userID string, activityIDs []int64) (int64, error) {
	if len(activityIDs) == 0 {
		return 0, nil
	}
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM activities WHERE user_id = $1 AND activity_id = ANY($2)`,
		userID, activityIDs)
	if err != nil {
		return 0, fmt.Errorf("deleting activities: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (models.Activity, error) {
	var (
		a         models.Activity
		startDate time.Time
	)
	err := row.Scan(&a.ActivityID, &a.UserID, &a.Name, &a.Type, &startDate,
		&a.StartDateLocal, &a.Timezone, &a.Distance, &a.MovingTime, &a.ElapsedTime,
		&a.TotalElevationGain, &a.AverageSpeed, &a.MaxSpeed,
		&a.HasHeartrate, &a.AverageHeartrate, &a.MaxHeartrate)
	if err != nil {
		return a, err
	}
	a.StartDate = startDate.UTC().Format(time.RFC3339)
	return a, nil
}

func scanActivityRows(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]models.Activity, error) {
	result := []models.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}
