// Package auth issues and verifies the HS256 bearer tokens that scope API
// and MCP requests to a single user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds the signing parameters.
type Config struct {
	Secret string
	Issuer string
}

// ErrMissingToken is returned when the Authorization header is absent.
var ErrMissingToken = errors.New("missing bearer token")

// ErrInvalidToken wraps parsing and validation errors.
var ErrInvalidToken = errors.New("invalid bearer token")

// StateAudience marks short-lived OAuth state tokens. Tokens carrying it
// never authenticate API requests.
const StateAudience = "strava-state"

// Issue signs a login token for subject that expires after ttl.
func Issue(cfg Config, subject string, ttl time.Duration, now time.Time) (string, error) {
	return issue(cfg, subject, nil, ttl, now)
}

// IssueState signs an OAuth state token binding a connect flow to subject.
func IssueState(cfg Config, subject string, ttl time.Duration, now time.Time) (string, error) {
	return issue(cfg, subject, jwt.ClaimStrings{StateAudience}, ttl, now)
}

func issue(cfg Config, subject string, audience jwt.ClaimStrings, ttl time.Duration, now time.Time) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("subject is required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    cfg.Issuer,
		Audience:  audience,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse validates a login token and returns its subject. Tokens with any
// audience, state tokens included, are rejected.
func Parse(token string, cfg Config) (string, error) {
	claims, err := parse(token, cfg, time.Now)
	if err != nil {
		return "", err
	}
	if len(claims.Audience) > 0 {
		return "", fmt.Errorf("%w: unexpected audience %v", ErrInvalidToken, claims.Audience)
	}
	return claims.Subject, nil
}

// ParseState validates an OAuth state token as of now and returns its subject.
func ParseState(token string, cfg Config, now time.Time) (string, error) {
	claims, err := parse(token, cfg, func() time.Time { return now }, jwt.WithAudience(StateAudience))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func parse(token string, cfg Config, now func() time.Time, extra ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := append([]jwt.ParserOption{
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	}, extra...)

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// Subject reads a token's subject without verifying it. Clients use it to key
// local state; the server always verifies with Parse.
func Subject(token string) (string, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// FromHeader extracts and validates the bearer token in an Authorization header value.
func FromHeader(header string, cfg Config) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return "", ErrInvalidToken
	}
	return Parse(header[len("Bearer "):], cfg)
}

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID stores the authenticated user on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the user stored by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// Middleware rejects requests without a valid bearer token and stores the
// token subject as the request's user.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := FromHeader(r.Header.Get("Authorization"), cfg)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="doubledash"`)
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprintf(w, `{"error":%q}`, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
