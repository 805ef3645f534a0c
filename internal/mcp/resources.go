package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) dashboard(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, errors.New("unauthenticated")
	}

	now := h.now()
	acts, err := h.ds.QueryActivities(ctx, uid, allHistory, now.Add(24*time.Hour), "")
	if err != nil {
		return nil, err
	}

	d, err := analytics.BuildDashboard(h.cal, acts, h.weeklyWindow, now)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
