// Package analytics turns a slice of activities into the summary views shown
// on the dashboard: totals, monthly and weekly rollups, pace/distance/heart-rate
// histograms, personal records and month-over-month trends.
//
// Every function is pure. Inputs are never mutated and each call returns
// freshly allocated results.
package analytics

import (
	"fmt"
	"math"
)

const (
	metersPerMile = 1609.34
	feetPerMeter  = 3.28084
)

// MetersToMiles converts meters to statute miles.
func MetersToMiles(m float64) float64 {
	return m / metersPerMile
}

// MetersToFeet converts meters to feet.
func MetersToFeet(m float64) float64 {
	return m * feetPerMeter
}

// SecondsToMinutes converts seconds to minutes.
func SecondsToMinutes(s float64) float64 {
	return s / 60
}

// SecondsToHours converts seconds to hours.
func SecondsToHours(s float64) float64 {
	return s / 3600
}

// PacePerMile returns minutes per mile. A non-positive distance yields 0,
// which callers must treat as "no pace" rather than a fast one.
func PacePerMile(movingTimeSeconds, distanceMeters float64) float64 {
	if distanceMeters <= 0 {
		return 0
	}
	return SecondsToMinutes(movingTimeSeconds) / MetersToMiles(distanceMeters)
}

// FormatPace renders minutes as "M:SS". Seconds that round up to 60 carry
// into the minute.
func FormatPace(paceMinutes float64) string {
	if paceMinutes <= 0 || math.IsNaN(paceMinutes) || math.IsInf(paceMinutes, 0) {
		return "0:00"
	}
	minutes := int(math.Floor(paceMinutes))
	seconds := int(math.Round((paceMinutes - float64(minutes)) * 60))
	if seconds == 60 {
		minutes++
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
