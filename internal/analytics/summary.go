package analytics

import "github.com/doubledash/doubledash/internal/models"

// ActivitySummary holds plain totals in source units (meters, seconds).
type ActivitySummary struct {
	TotalActivities int            `json:"totalActivities"`
	TotalDistance   float64        `json:"totalDistance"`
	TotalElevation  float64        `json:"totalElevation"`
	TotalMovingTime float64        `json:"totalMovingTime"`
	ActivityTypes   map[string]int `json:"activityTypes"`
}

// Summary totals distance, elevation and moving time and counts activities by type.
func Summary(activities []models.Activity) ActivitySummary {
	s := ActivitySummary{
		TotalActivities: len(activities),
		ActivityTypes:   make(map[string]int),
	}
	for _, a := range activities {
		s.TotalDistance += a.Distance
		s.TotalElevation += a.TotalElevationGain
		s.TotalMovingTime += a.MovingTime
		s.ActivityTypes[a.Type]++
	}
	return s
}
