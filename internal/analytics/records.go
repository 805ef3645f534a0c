package analytics

import "github.com/doubledash/doubledash/internal/models"

// RaceDistance is a canonical distance that personal records are tracked for.
type RaceDistance struct {
	Name  string
	Miles float64
}

// RaceDistances are checked in this order.
var RaceDistances = []RaceDistance{
	{Name: "1 Mile", Miles: 1},
	{Name: "5K", Miles: 3.1},
	{Name: "10K", Miles: 6.2},
	{Name: "Half Marathon", Miles: 13.1},
	{Name: "Marathon", Miles: 26.2},
}

// recordTolerance is the fraction of the target an activity may deviate by.
const recordTolerance = 0.10

// windowEpsilon absorbs float error from the meter/mile round trip so the
// window edges themselves qualify.
const windowEpsilon = 1e-9

// window returns the inclusive mileage range that counts toward d.
func (d RaceDistance) window() (lo, hi float64) {
	return d.Miles * (1 - recordTolerance), d.Miles * (1 + recordTolerance)
}

// PersonalRecord is the fastest activity near a canonical distance.
type PersonalRecord struct {
	Distance      string  `json:"distance"`
	TargetMiles   float64 `json:"targetMiles"`
	ActivityID    int64   `json:"activityId"`
	ActualMiles   float64 `json:"actualMiles"`
	Time          float64 `json:"time"` // moving seconds
	Pace          float64 `json:"pace"` // min/mile
	FormattedPace string  `json:"formattedPace"`
	Date          string  `json:"date"`
}

// PersonalRecords finds, for each race distance, the activity within ±10% of
// it with the lowest moving time. On equal times the earlier entry in the
// input wins. Distances with no candidate are omitted.
func PersonalRecords(activities []models.Activity) []PersonalRecord {
	result := make([]PersonalRecord, 0, len(RaceDistances))
	for _, target := range RaceDistances {
		lo, hi := target.window()
		best := -1
		for i, a := range activities {
			miles := MetersToMiles(a.Distance)
			if miles < lo-windowEpsilon || miles > hi+windowEpsilon {
				continue
			}
			if best < 0 || a.MovingTime < activities[best].MovingTime {
				best = i
			}
		}
		if best < 0 {
			continue
		}

		a := activities[best]
		pace := PacePerMile(a.MovingTime, a.Distance)
		result = append(result, PersonalRecord{
			Distance:      target.Name,
			TargetMiles:   target.Miles,
			ActivityID:    a.ActivityID,
			ActualMiles:   MetersToMiles(a.Distance),
			Time:          a.MovingTime,
			Pace:          pace,
			FormattedPace: FormatPace(pace),
			Date:          a.StartDate,
		})
	}
	return result
}
