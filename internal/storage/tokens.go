package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/doubledash/doubledash/internal/models"
	"github.com/jackc/pgx/v5"
)

// SaveStravaToken stores or replaces the Strava OAuth token for a user.
func (db *DB) SaveStravaToken(ctx context.Context, tok models.StravaToken) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO strava_tokens (user_id, athlete_id, access_token, refresh_token, token_type, expiry)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			athlete_id = EXCLUDED.athlete_id,
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), strava_tokens.refresh_token),
			token_type = EXCLUDED.token_type,
			expiry = EXCLUDED.expiry,
			updated_at = NOW()
	`, tok.UserID, tok.AthleteID, tok.AccessToken, tok.RefreshToken, tok.TokenType, tok.Expiry)
	if err != nil {
		return fmt.Errorf("saving strava token for %s: %w", tok.UserID, err)
	}
	return nil
}

// GetStravaToken returns the stored token for a user, or ErrNotFound if the
// user never connected Strava.
func (db *DB) GetStravaToken(ctx context.Context, userID string) (*models.StravaToken, error) {
	var tok models.StravaToken
	err := db.Pool.QueryRow(ctx, `
		SELECT user_id, athlete_id, access_token, refresh_token, token_type, expiry, updated_at
		FROM strava_tokens WHERE user_id = $1
	`, userID).Scan(&tok.UserID, &tok.AthleteID, &tok.AccessToken, &tok.RefreshToken,
		&tok.TokenType, &tok.Expiry, &tok.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying strava token: %w", err)
	}
	return &tok, nil
}

// ListStravaUsers returns the IDs of every user with a stored Strava token.
func (db *DB) ListStravaUsers(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `SELECT user_id FROM strava_tokens ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("listing strava users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning strava user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
