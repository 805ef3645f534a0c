// Package cache keeps a local SQLite copy of a user's activities so the
// report CLI can work offline and skip refetching fresh data.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/doubledash/doubledash/internal/models"
	_ "modernc.org/sqlite"
)

// ErrMiss is returned by Get when nothing is cached for the user.
var ErrMiss = errors.New("cache miss")

// Cache is a per-user activity snapshot store.
type Cache struct {
	db *sql.DB
}

// Entry is one cached snapshot.
type Entry struct {
	Activities []models.Activity
	FetchedAt  time.Time
}

// Open opens (or creates) the SQLite cache database at dir/cache.db.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "cache.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

// schemaVersion is stored in PRAGMA user_version. A cache written with a
// different version is dropped and rebuilt on open.
const schemaVersion = 2

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("reading cache schema version: %w", err)
	}
	if version == schemaVersion {
		return nil
	}

	for _, ddl := range []string{
		`DROP TABLE IF EXISTS activities`,
		`DROP TABLE IF EXISTS snapshots`,
		`CREATE TABLE snapshots (
			user_id    TEXT PRIMARY KEY,
			fetched_at INTEGER NOT NULL
		)`,
		`CREATE TABLE activities (
			user_id     TEXT NOT NULL,
			activity_id INTEGER NOT NULL,
			seq         INTEGER NOT NULL,
			data        TEXT NOT NULL,
			PRIMARY KEY (user_id, activity_id)
		)`,
		fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion),
	} {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("creating cache tables: %w", err)
		}
	}
	return nil
}

// Put replaces the user's cached activities with acts.
func (c *Cache) Put(userID string, acts []models.Activity, fetchedAt time.Time) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM activities WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing activities: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO activities (user_id, activity_id, seq, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range acts {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encoding activity %d: %w", a.ActivityID, err)
		}
		if _, err := stmt.Exec(userID, a.ActivityID, i, string(data)); err != nil {
			return fmt.Errorf("inserting activity %d: %w", a.ActivityID, err)
		}
	}

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO snapshots (user_id, fetched_at) VALUES (?, ?)`,
		userID, fetchedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("recording snapshot: %w", err)
	}
	return tx.Commit()
}

// Get returns the user's cached activities in the order they were Put, or
// ErrMiss.
func (c *Cache) Get(userID string) (*Entry, error) {
	var fetchedMs int64
	err := c.db.QueryRow(`SELECT fetched_at FROM snapshots WHERE user_id = ?`, userID).Scan(&fetchedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	rows, err := c.db.Query(`SELECT data FROM activities WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("reading activities: %w", err)
	}
	defer rows.Close()

	e := &Entry{Activities: []models.Activity{}, FetchedAt: time.UnixMilli(fetchedMs).UTC()}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var a models.Activity
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("decoding cached activity: %w", err)
		}
		e.Activities = append(e.Activities, a)
	}
	return e, rows.Err()
}

// IsStale reports whether the user's snapshot is missing or older than maxAge.
func (c *Cache) IsStale(userID string, maxAge time.Duration, now time.Time) (bool, error) {
	var fetchedMs int64
	err := c.db.QueryRow(`SELECT fetched_at FROM snapshots WHERE user_id = ?`, userID).Scan(&fetchedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading snapshot: %w", err)
	}
	return now.Sub(time.UnixMilli(fetchedMs)) > maxAge, nil
}

// Invalidate drops everything cached for the user.
func (c *Cache) Invalidate(userID string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM activities WHERE user_id = ?`, userID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM snapshots WHERE user_id = ?`, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}
