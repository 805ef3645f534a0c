// Package strava talks to the Strava API: the OAuth authorization flow and
// paging through an athlete's activities.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doubledash/doubledash/internal/models"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the public Strava host.
const DefaultBaseURL = "https://www.strava.com"

// MaxPerPage is the largest page size Strava accepts.
const MaxPerPage = 200

// Scopes requested during authorization.
var Scopes = []string{"read", "activity:read_all"}

// APIError is returned for non-2xx responses from the activities API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava API status %d: %s", e.StatusCode, e.Body)
}

// Client wraps the OAuth2 config and the REST endpoints.
type Client struct {
	oauth   *oauth2.Config
	apiBase string
	timeout time.Duration
}

// NewClient creates a Strava client. An empty baseURL selects DefaultBaseURL.
func NewClient(clientID, clientSecret, redirectURL, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + "/oauth/authorize",
				TokenURL:  baseURL + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: redirectURL,
			Scopes:      []string{strings.Join(Scopes, ",")},
		},
		apiBase: baseURL + "/api/v3",
		timeout: 30 * time.Second,
	}
}

// AuthCodeURL returns the Strava consent page URL for the given state.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "auto"))
}

// Exchange trades an authorization code for a token. Strava returns the
// athlete alongside the token; its ID is extracted from the response.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, int64, error) {
	if code == "" {
		return nil, 0, fmt.Errorf("missing authorization code")
	}
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, 0, fmt.Errorf("exchanging code: %w", err)
	}
	return tok, athleteID(tok), nil
}

func athleteID(tok *oauth2.Token) int64 {
	athlete, ok := tok.Extra("athlete").(map[string]any)
	if !ok {
		return 0
	}
	switch id := athlete["id"].(type) {
	case float64:
		return int64(id)
	case json.Number:
		n, _ := id.Int64()
		return n
	}
	return 0
}

// TokenSource returns a source that refreshes tok when it expires.
func (c *Client) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return c.oauth.TokenSource(ctx, tok)
}

// ListActivities fetches one page of the athlete's activities that started
// after the given time. A zero after fetches from the beginning.
func (c *Client) ListActivities(ctx context.Context, ts oauth2.TokenSource, after time.Time, page, perPage int) ([]models.Activity, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if !after.IsZero() {
		q.Set("after", strconv.FormatInt(after.Unix(), 10))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/athlete/activities?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := oauth2.NewClient(ctx, ts).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching activities page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var raw []summaryActivity
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding activities page %d: %w", page, err)
	}

	acts := make([]models.Activity, len(raw))
	for i, r := range raw {
		acts[i] = r.toModel()
	}
	return acts, nil
}

// summaryActivity is the subset of Strava's SummaryActivity we store.
type summaryActivity struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	SportType          string   `json:"sport_type"`
	StartDate          string   `json:"start_date"`
	StartDateLocal     string   `json:"start_date_local"`
	Timezone           string   `json:"timezone"`
	Distance           float64  `json:"distance"`
	MovingTime         float64  `json:"moving_time"`
	ElapsedTime        float64  `json:"elapsed_time"`
	TotalElevationGain float64  `json:"total_elevation_gain"`
	AverageSpeed       float64  `json:"average_speed"`
	MaxSpeed           float64  `json:"max_speed"`
	HasHeartrate       bool     `json:"has_heartrate"`
	AverageHeartrate   *float64 `json:"average_heartrate"`
	MaxHeartrate       *float64 `json:"max_heartrate"`
}

func (s summaryActivity) toModel() models.Activity {
	typ := s.Type
	if typ == "" {
		typ = s.SportType
	}
	return models.Activity{
		ActivityID:         s.ID,
		Name:               s.Name,
		Type:               typ,
		StartDate:          s.StartDate,
		StartDateLocal:     s.StartDateLocal,
		Timezone:           s.Timezone,
		Distance:           s.Distance,
		MovingTime:         s.MovingTime,
		ElapsedTime:        s.ElapsedTime,
		TotalElevationGain: s.TotalElevationGain,
		AverageSpeed:       s.AverageSpeed,
		MaxSpeed:           s.MaxSpeed,
		HasHeartrate:       s.HasHeartrate,
		AverageHeartrate:   s.AverageHeartrate,
		MaxHeartrate:       s.MaxHeartrate,
	}
}

// TokenFromModel converts a stored token into an oauth2 token.
func TokenFromModel(t *models.StravaToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// TokenToModel converts an oauth2 token into its stored form.
func TokenToModel(userID string, athleteID int64, tok *oauth2.Token) models.StravaToken {
	typ := tok.TokenType
	if typ == "" {
		typ = "Bearer"
	}
	return models.StravaToken{
		UserID:       userID,
		AthleteID:    athleteID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    typ,
		Expiry:       tok.Expiry,
	}
}
