package analytics

import (
	"time"

	"github.com/doubledash/doubledash/internal/models"
)

// Dashboard bundles every view computed from one activity snapshot.
type Dashboard struct {
	GeneratedAt          time.Time            `json:"generatedAt"`
	Summary              ActivitySummary      `json:"summary"`
	Monthly              []MonthlyStat        `json:"monthly"`
	Weekly               []WeeklyStat         `json:"weekly"`
	PaceDistribution     []DistributionBucket `json:"paceDistribution"`
	DistanceDistribution []DistributionBucket `json:"distanceDistribution"`
	HeartRateZones       []HeartRateZone      `json:"heartRateZones"`
	PersonalRecords      []PersonalRecord     `json:"personalRecords"`
	Trends               *PerformanceTrends   `json:"trends"`
}

// BuildDashboard runs every aggregation over activities. A malformed
// start_date fails the whole build with a *DataError.
func BuildDashboard(cal Calendar, activities []models.Activity, windowWeeks int, now time.Time) (*Dashboard, error) {
	monthly, err := MonthlyStats(cal, activities)
	if err != nil {
		return nil, err
	}
	weekly, err := WeeklyStats(cal, activities, windowWeeks, now)
	if err != nil {
		return nil, err
	}
	trends, err := Trends(cal, activities)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		GeneratedAt:          now,
		Summary:              Summary(activities),
		Monthly:              monthly,
		Weekly:               weekly,
		PaceDistribution:     PaceDistribution(activities),
		DistanceDistribution: DistanceDistribution(activities),
		HeartRateZones:       HeartRateZones(activities),
		PersonalRecords:      PersonalRecords(activities),
		Trends:               trends,
	}, nil
}
