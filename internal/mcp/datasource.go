package mcp

import (
	"context"
	"time"

	"github.com/doubledash/doubledash/internal/models"
	"github.com/doubledash/doubledash/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QueryActivities(ctx context.Context, userID string, start, end time.Time, typeFilter string) ([]models.Activity, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
