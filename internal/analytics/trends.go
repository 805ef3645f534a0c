package analytics

import "github.com/doubledash/doubledash/internal/models"

// PerformanceTrends compares the most recent month with the one before it.
// Each change is a percentage; nil means the previous month was zero while
// the current one was not, so no finite percentage exists.
type PerformanceTrends struct {
	CurrentMonth    string   `json:"currentMonth"`
	PreviousMonth   string   `json:"previousMonth"`
	DistanceChange  *float64 `json:"distanceChange"`
	PaceChange      *float64 `json:"paceChange"`
	RunsChange      *float64 `json:"runsChange"`
	ElevationChange *float64 `json:"elevationChange"`
}

// PercentChange returns (current-previous)/previous*100. A zero baseline
// yields 0 when current is also zero and nil otherwise.
func PercentChange(previous, current float64) *float64 {
	var pct float64
	switch {
	case previous == 0 && current == 0:
		pct = 0
	case previous == 0:
		return nil
	default:
		pct = (current - previous) / previous * 100
	}
	return &pct
}

// Trends computes month-over-month change across the last two months that
// have data. It returns nil when fewer than two months are present.
func Trends(cal Calendar, activities []models.Activity) (*PerformanceTrends, error) {
	months, err := MonthlyStats(cal, activities)
	if err != nil {
		return nil, err
	}
	if len(months) < 2 {
		return nil, nil
	}

	prev, cur := months[len(months)-2], months[len(months)-1]
	return &PerformanceTrends{
		CurrentMonth:    cur.Month,
		PreviousMonth:   prev.Month,
		DistanceChange:  PercentChange(prev.TotalDistance, cur.TotalDistance),
		PaceChange:      PercentChange(prev.AvgPace, cur.AvgPace),
		RunsChange:      PercentChange(float64(prev.TotalRuns), float64(cur.TotalRuns)),
		ElevationChange: PercentChange(prev.TotalElevation, cur.TotalElevation),
	}, nil
}
