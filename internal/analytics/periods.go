package analytics

import (
	"sort"
	"time"

	"github.com/doubledash/doubledash/internal/models"
)

// PeriodStat holds converted totals and per-activity averages for one period.
type PeriodStat struct {
	TotalRuns      int     `json:"totalRuns"`
	TotalDistance  float64 `json:"totalDistance"`  // miles
	TotalTime      float64 `json:"totalTime"`      // hours
	TotalElevation float64 `json:"totalElevation"` // feet
	AvgPace        float64 `json:"avgPace"`        // min/mile
	AvgDistance    float64 `json:"avgDistance"`    // miles
}

// MonthlyStat is one calendar month of activity.
type MonthlyStat struct {
	Month string `json:"month"`
	PeriodStat
}

// WeeklyStat is one Sunday-started calendar week of activity.
type WeeklyStat struct {
	Week string `json:"week"`
	PeriodStat
}

// periodStat aggregates one bucket. AvgPace is the mean of individual paces,
// not pace from summed totals; zero-distance activities have no pace and are
// left out of that mean.
func periodStat(activities []models.Activity) PeriodStat {
	var ps PeriodStat
	var paceSum float64
	var paced int
	for _, a := range activities {
		ps.TotalRuns++
		ps.TotalDistance += MetersToMiles(a.Distance)
		ps.TotalTime += SecondsToHours(a.MovingTime)
		ps.TotalElevation += MetersToFeet(a.TotalElevationGain)
		if pace := PacePerMile(a.MovingTime, a.Distance); pace > 0 {
			paceSum += pace
			paced++
		}
	}
	if paced > 0 {
		ps.AvgPace = paceSum / float64(paced)
	}
	if ps.TotalRuns > 0 {
		ps.AvgDistance = ps.TotalDistance / float64(ps.TotalRuns)
	}
	return ps
}

// MonthlyStats returns one row per month that has activities, oldest first.
// Months without activities are not emitted.
func MonthlyStats(cal Calendar, activities []models.Activity) ([]MonthlyStat, error) {
	groups, err := GroupByMonth(cal, activities)
	if err != nil {
		return nil, err
	}

	months := make([]string, 0, len(groups))
	for m := range groups {
		months = append(months, m)
	}
	sort.Strings(months)

	result := make([]MonthlyStat, 0, len(months))
	for _, m := range months {
		result = append(result, MonthlyStat{Month: m, PeriodStat: periodStat(groups[m])})
	}
	return result, nil
}

// WeeklyStats returns exactly windowWeeks rows ending with the week that
// contains now, oldest first. Unlike MonthlyStats, weeks without activities
// are emitted as zero rows.
func WeeklyStats(cal Calendar, activities []models.Activity, windowWeeks int, now time.Time) ([]WeeklyStat, error) {
	groups, err := GroupByWeek(cal, activities)
	if err != nil {
		return nil, err
	}
	if windowWeeks <= 0 {
		return []WeeklyStat{}, nil
	}

	current := cal.WeekStart(now)
	result := make([]WeeklyStat, 0, windowWeeks)
	for i := windowWeeks - 1; i >= 0; i-- {
		key := current.AddDate(0, 0, -7*i).Format("2006-01-02")
		result = append(result, WeeklyStat{Week: key, PeriodStat: periodStat(groups[key])})
	}
	return result, nil
}
