package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/doubledash/doubledash/internal/auth"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) (string, bool) {
	return auth.UserIDFromContext(ctx)
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return auth.WithUserID(ctx, userID)
}

// Options configures the analytics tools.
type Options struct {
	Calendar     analytics.Calendar
	WeeklyWindow int
	Version      string
	Log          *slog.Logger
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, opts Options) *server.MCPServer {
	s := server.NewMCPServer("DoubleDash", opts.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("DoubleDash running analytics server. Query activities, monthly and weekly training volume, pace and distance distributions, heart rate zones, personal records and month-over-month trends. Distances are miles, elevation feet, pace minutes per mile. All data is scoped to the authenticated user."),
	)

	h := &handlers{
		ds:           ds,
		cal:          opts.Calendar,
		weeklyWindow: opts.WeeklyWindow,
		log:          opts.Log,
		now:          time.Now,
	}
	if h.weeklyWindow <= 0 {
		h.weeklyWindow = 12
	}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetActivities, Handler: h.getActivities},
		server.ServerTool{Tool: toolGetActivitySummary, Handler: h.getActivitySummary},
		server.ServerTool{Tool: toolGetMonthlyStats, Handler: h.getMonthlyStats},
		server.ServerTool{Tool: toolGetWeeklyStats, Handler: h.getWeeklyStats},
		server.ServerTool{Tool: toolGetPaceDistribution, Handler: h.getPaceDistribution},
		server.ServerTool{Tool: toolGetDistanceDistribution, Handler: h.getDistanceDistribution},
		server.ServerTool{Tool: toolGetHeartRateZones, Handler: h.getHeartRateZones},
		server.ServerTool{Tool: toolGetPersonalRecords, Handler: h.getPersonalRecords},
		server.ServerTool{Tool: toolGetPerformanceTrends, Handler: h.getPerformanceTrends},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resDashboard, Handler: h.dashboard},
	)

	return s
}

// NewHTTPHandler wraps s in the streamable HTTP transport. The user set on
// the request context by auth middleware is carried into tool calls.
func NewHTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if id, ok := auth.UserIDFromContext(r.Context()); ok {
				return auth.WithUserID(ctx, id)
			}
			return ctx
		}),
	)
}

// ServeStdio runs s over stdin/stdout with every call attributed to userID.
func ServeStdio(s *server.MCPServer, userID string) error {
	return server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
		return auth.WithUserID(ctx, userID)
	}))
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds           DataSource
	cal          analytics.Calendar
	weeklyWindow int
	log          *slog.Logger
	now          func() time.Time
}

// --- Resource definitions ---

var resDashboard = mcp.NewResource(
	"doubledash://dashboard",
	"Training Dashboard",
	mcp.WithResourceDescription("Every analytics view over the full activity history: summary, monthly and weekly stats, distributions, heart rate zones, personal records and trends"),
	mcp.WithMIMEType("application/json"),
)
