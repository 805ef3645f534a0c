package analytics

import (
	"math"
	"testing"
)

// TestConversions verifies the scalar unit conversions.
func TestConversions(t *testing.T) {
	approx(t, "MetersToMiles(1609.34)", MetersToMiles(1609.34), 1)
	approx(t, "MetersToMiles(5000)", MetersToMiles(5000), 3.1069)
	approx(t, "MetersToFeet(100)", MetersToFeet(100), 328.084)
	approx(t, "SecondsToMinutes(90)", SecondsToMinutes(90), 1.5)
	approx(t, "SecondsToHours(5400)", SecondsToHours(5400), 1.5)
}

// TestPacePerMile verifies pace in min/mile and the zero sentinel for
// activities without distance.
func TestPacePerMile(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		meters  float64
		want    float64
	}{
		{"one mile in eight minutes", 480, 1609.34, 8},
		{"5k in 25 minutes", 1500, 5000, 8.0467},
		{"zero distance", 1200, 0, 0},
		{"negative distance", 1200, -5, 0},
		{"zero time", 0, 1609.34, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PacePerMile(tt.seconds, tt.meters)
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Fatalf("PacePerMile(%v, %v) = %v, want finite", tt.seconds, tt.meters, got)
			}
			approx(t, "PacePerMile", got, tt.want)
		})
	}
}

// TestFormatPace verifies "M:SS" rendering, including the carry when seconds
// round up to 60.
func TestFormatPace(t *testing.T) {
	tests := []struct {
		pace float64
		want string
	}{
		{7.5, "7:30"},
		{8.0, "8:00"},
		{6.25, "6:15"},
		{9.05, "9:03"},
		{7.999, "8:00"},
		{12.9999, "13:00"},
		{0, "0:00"},
		{-3, "0:00"},
		{math.NaN(), "0:00"},
		{math.Inf(1), "0:00"},
	}

	for _, tt := range tests {
		if got := FormatPace(tt.pace); got != tt.want {
			t.Errorf("FormatPace(%v) = %q, want %q", tt.pace, got, tt.want)
		}
	}
}
