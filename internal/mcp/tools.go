package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/doubledash/doubledash/internal/models"
	"github.com/doubledash/doubledash/internal/observability"
	"github.com/mark3labs/mcp-go/mcp"
)

// allHistory marks a time range defaulting to every stored activity.
var allHistory = time.Unix(0, 0).UTC()

// defaultTimeRange returns start/end; a missing start falls back to
// defaultStart, a missing end to a day past now.
func defaultTimeRange(startStr, endStr string, defaultStart func(end time.Time) time.Time) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now().Add(24 * time.Hour)
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = defaultStart(end)
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("end must be after start")
	}
	return start, end, nil
}

func lastDays(n int) func(time.Time) time.Time {
	return func(end time.Time) time.Time { return end.AddDate(0, 0, -n) }
}

func fromBeginning(time.Time) time.Time { return allHistory }

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var rangeParams = []mcp.ToolOption{
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to the first stored activity.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("type", mcp.Description("Only include activities of this type, case-insensitive (e.g. 'Run', 'Ride')")),
}

func newAnalyticsTool(name, description string, extra ...mcp.ToolOption) mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, rangeParams...)
	return mcp.NewTool(name, append(opts, extra...)...)
}

var toolGetActivities = mcp.NewTool("get_activities",
	mcp.WithDescription("List activities with distance (meters), moving time (seconds), elevation gain (meters) and heart rate, oldest first."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("type", mcp.Description("Filter by activity type, case-insensitive (e.g. 'Run')")),
)

var toolGetActivitySummary = newAnalyticsTool("get_activity_summary",
	"Total activity count, distance (meters), elevation gain (meters), moving time (seconds) and a count per activity type.")

var toolGetMonthlyStats = newAnalyticsTool("get_monthly_stats",
	"Per calendar month: activity count, total miles, hours, elevation feet, average pace (min/mile) and average distance. Months without activities are omitted.")

var toolGetWeeklyStats = newAnalyticsTool("get_weekly_stats",
	"Per Sunday-started week, ending with the current week: the same totals as get_monthly_stats. Weeks without activities are included as zeros.",
	mcp.WithNumber("weeks", mcp.Description("Number of weeks to return. Defaults to the server's configured window."), mcp.Min(1), mcp.Max(156)),
)

var toolGetPaceDistribution = newAnalyticsTool("get_pace_distribution",
	"Histogram of per-activity pace in min/mile over fixed buckets from under 6:00 to 10:00+. Activities slower than 20 min/mile are ignored.")

var toolGetDistanceDistribution = newAnalyticsTool("get_distance_distribution",
	"Histogram of per-activity distance in miles over fixed buckets from under 3 mi to 15+ mi.")

var toolGetHeartRateZones = newAnalyticsTool("get_heart_rate_zones",
	"Count of activities per heart rate zone by average heart rate. Returns null when no activity has heart rate data.")

var toolGetPersonalRecords = newAnalyticsTool("get_personal_records",
	"Fastest activity within 10% of each standard race distance (1 Mile, 5K, 10K, Half Marathon, Marathon), with time, pace and date.")

var toolGetPerformanceTrends = newAnalyticsTool("get_performance_trends",
	"Percent change in distance, pace, activity count and elevation between the two most recent months with activities. Returns null with fewer than two months.")

// --- Tool handlers ---

// loadActivities reads the caller's activities for the request's range and
// type. A non-nil result is a tool error to return as-is.
func (h *handlers) loadActivities(ctx context.Context, req mcp.CallToolRequest, defaultStart func(time.Time) time.Time) ([]models.Activity, *mcp.CallToolResult) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, mcp.NewToolResultError("unauthenticated")
	}

	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), defaultStart)
	if err != nil {
		return nil, mcp.NewToolResultError("invalid date range: " + err.Error())
	}

	acts, err := h.ds.QueryActivities(ctx, uid, start, end, req.GetString("type", ""))
	if err != nil {
		h.log.Error("mcp query activities", "tool", req.Params.Name, "error", err)
		return nil, mcp.NewToolResultError("query failed: " + err.Error())
	}
	return acts, nil
}

// analyticsTool runs compute over the caller's activities and returns the
// result as JSON.
func (h *handlers) analyticsTool(ctx context.Context, req mcp.CallToolRequest, compute func([]models.Activity) (any, error)) (*mcp.CallToolResult, error) {
	acts, toolErr := h.loadActivities(ctx, req, fromBeginning)
	if toolErr != nil {
		return toolErr, nil
	}

	began := time.Now()
	v, err := compute(acts)
	observability.ObserveAnalytics(req.Params.Name, time.Since(began), err)
	if err != nil {
		var dataErr *analytics.DataError
		if errors.As(err, &dataErr) {
			return mcp.NewToolResultError("bad activity data: " + err.Error()), nil
		}
		h.log.Error("mcp analytics", "tool", req.Params.Name, "error", err)
		return mcp.NewToolResultError("computation failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getActivities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	acts, toolErr := h.loadActivities(ctx, req, lastDays(30))
	if toolErr != nil {
		return toolErr, nil
	}
	result, err := mcp.NewToolResultJSON(acts)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getActivitySummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.analyticsTool(ctx, req, func(acts []models.Activity) (any, error) {
		return analytics.Summary(acts), nil
	})
}

func (h *handlers) getMonthlyStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.analyticsTool(ctx, req, func(acts []models.Activity) (any, error) {
		return analytics.MonthlyStats(h.cal, acts)
	})
}

func (h *handlers) getWeeklyStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	weeks := req.GetInt("weeks", h.weeklyWindow)
	if weeks < 1 || weeks > 156 {
		return mcp.NewToolResultError("weeks must be between 1 and 156"), nil
	}
	return h.analyticsTool(ctx, req, func(acts []models.Activity) (any, error) {
		return analytics.WeeklyStats(h.cal, acts, weeks, h.now())
	})
}

func (h *handlers) getPaceDistribution(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.analyticsTool(ctx, req, func(acts []models.Activity) (any, error) {
		return analytics.PaceDistribution(acts), nil
	})
}

func (h *handlers) getDistanceDistribution(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.analyticsTool(ctx, req, func(acts []models.Activity) (any, error) {
		return analytics.DistanceDistribution(acts), nil
	})
}

func (h *handlers) getHeartRateZones(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.analyticsTool(ctx, req, func(acts []models.Activity) (any, error) {
		return analytics.HeartRateZones(acts), nil
	})
}

func (h *handlers) getPersonalRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.analyticsTool(ctx, req, func(acts []models.Activity) (any, error) {
		return analytics.PersonalRecords(acts), nil
	})
}

func (h *handlers) getPerformanceTrends(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.analyticsTool(ctx, req, func(acts []models.Activity) (any, error) {
		return analytics.Trends(h.cal, acts)
	})
}
