package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doubledash/doubledash/internal/models"
)

// Client reads activities from a DoubleDash server over HTTP.
type Client struct {
	serverURL  string
	token      string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the DoubleDash server. token is the
// caller's bearer token.
func NewClient(serverURL, token string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		token:     token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// FetchActivities retrieves every activity for the token's user starting in
// [start, end). Retries up to 3 times with exponential backoff on transport
// errors and 5xx responses.
func (c *Client) FetchActivities(ctx context.Context, start, end time.Time) ([]models.Activity, error) {
	params := url.Values{}
	params.Set("start", start.UTC().Format(time.RFC3339))
	params.Set("end", end.UTC().Format(time.RFC3339))
	u := c.serverURL + "/api/v1/activities?" + params.Encode()

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		acts, retry, err := c.fetchOnce(ctx, u)
		if err == nil {
			return acts, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("after 3 attempts: %w", lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, u string) ([]models.Activity, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("fetching activities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, resp.StatusCode >= 500, fmt.Errorf("activities request failed (status %d): %s", resp.StatusCode, body)
	}

	var acts []models.Activity
	if err := json.NewDecoder(resp.Body).Decode(&acts); err != nil {
		return nil, false, fmt.Errorf("decoding activities: %w", err)
	}
	return acts, false, nil
}
