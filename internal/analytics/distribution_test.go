package analytics

import (
	"testing"

	"github.com/doubledash/doubledash/internal/models"
)

func bucketCounts(buckets []DistributionBucket) []int {
	counts := make([]int, len(buckets))
	for i, b := range buckets {
		counts[i] = b.Count
	}
	return counts
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestPaceDistribution verifies half-open bucketing and that zero-distance
// and implausibly slow paces are excluded rather than bucketed.
func TestPaceDistribution(t *testing.T) {
	mile := milesToMeters(1)
	acts := []models.Activity{
		run(1, "", mile, 330),  // 5:30
		run(2, "", mile, 360),  // exactly 6:00, lands in 6-7
		run(3, "", mile, 450),  // 7:30
		run(4, "", mile, 600),  // exactly 10:00
		run(5, "", mile, 900),  // 15:00
		run(6, "", mile, 1500), // 25:00, excluded
		run(7, "", 0, 1200),    // no distance, excluded
	}

	buckets := PaceDistribution(acts)
	if len(buckets) != 6 {
		t.Fatalf("buckets = %d, want 6", len(buckets))
	}
	want := []int{1, 1, 1, 0, 0, 2}
	if got := bucketCounts(buckets); !equalInts(got, want) {
		t.Errorf("counts = %v, want %v", got, want)
	}
	if buckets[5].Max != nil {
		t.Errorf("last bucket max = %v, want unbounded", *buckets[5].Max)
	}
	if buckets[1].Min != 6 || buckets[1].Max == nil || *buckets[1].Max != 7 {
		t.Errorf("bucket[1] = %+v, want [6,7)", buckets[1])
	}
}

// TestPaceDistributionZeroDistanceOnly verifies that zero-distance activities
// contribute nothing to any bucket.
func TestPaceDistributionZeroDistanceOnly(t *testing.T) {
	acts := []models.Activity{run(1, "", 0, 1800), run(2, "", 0, 60)}
	for i, b := range PaceDistribution(acts) {
		if b.Count != 0 {
			t.Errorf("bucket[%d] %q count = %d, want 0", i, b.Range, b.Count)
		}
	}
}

// TestDistanceDistribution verifies every activity lands in exactly one
// bucket, including zero-distance ones.
func TestDistanceDistribution(t *testing.T) {
	acts := []models.Activity{
		run(1, "", 0, 0),
		run(2, "", milesToMeters(2), 0),
		run(3, "", milesToMeters(4), 0),
		run(4, "", milesToMeters(7), 0),
		run(5, "", milesToMeters(12), 0),
		run(6, "", milesToMeters(20), 0),
		run(7, "", milesToMeters(26.2), 0),
	}

	buckets := DistanceDistribution(acts)
	want := []int{2, 1, 1, 1, 2}
	if got := bucketCounts(buckets); !equalInts(got, want) {
		t.Errorf("counts = %v, want %v", got, want)
	}

	total := 0
	for _, b := range buckets {
		total += b.Count
	}
	if total != len(acts) {
		t.Errorf("sum of counts = %d, want %d", total, len(acts))
	}
}

// TestDistributionsEmpty verifies the fixed bucket set is returned with zero
// counts for empty input.
func TestDistributionsEmpty(t *testing.T) {
	if n := len(PaceDistribution(nil)); n != 6 {
		t.Errorf("PaceDistribution(nil) buckets = %d, want 6", n)
	}
	if n := len(DistanceDistribution(nil)); n != 5 {
		t.Errorf("DistanceDistribution(nil) buckets = %d, want 5", n)
	}
}

// TestHeartRateZonesNoData verifies nil (not an empty list) when no activity
// carries heart-rate data.
func TestHeartRateZonesNoData(t *testing.T) {
	if zones := HeartRateZones(nil); zones != nil {
		t.Errorf("HeartRateZones(nil) = %v, want nil", zones)
	}

	acts := []models.Activity{
		{ActivityID: 1, HasHeartrate: false, AverageHeartrate: ptr(150), MaxHeartrate: ptr(170)},
		{ActivityID: 2, HasHeartrate: true, AverageHeartrate: ptr(150)}, // no max
		{ActivityID: 3, HasHeartrate: true},
	}
	if zones := HeartRateZones(acts); zones != nil {
		t.Errorf("HeartRateZones(no usable HR) = %v, want nil", zones)
	}
}

// TestHeartRateZones verifies bucketing by average heart rate and that
// has_heartrate=false excludes an activity even with populated fields.
func TestHeartRateZones(t *testing.T) {
	hr := func(avg float64) models.Activity {
		return models.Activity{HasHeartrate: true, AverageHeartrate: ptr(avg), MaxHeartrate: ptr(avg + 20)}
	}
	acts := []models.Activity{
		hr(120),
		hr(139.9),
		hr(140),
		hr(165),
		hr(185),
		hr(200),
		{HasHeartrate: false, AverageHeartrate: ptr(150), MaxHeartrate: ptr(180)},
	}

	zones := HeartRateZones(acts)
	if len(zones) != 5 {
		t.Fatalf("zones = %d, want 5", len(zones))
	}

	wantNames := []string{"Recovery", "Aerobic", "Threshold", "VO2 Max", "Anaerobic"}
	wantCounts := []int{2, 1, 1, 1, 1}
	total := 0
	for i, z := range zones {
		if z.Zone != wantNames[i] {
			t.Errorf("zones[%d].Zone = %q, want %q", i, z.Zone, wantNames[i])
		}
		if z.Count != wantCounts[i] {
			t.Errorf("zones[%d] (%s) count = %d, want %d", i, z.Zone, z.Count, wantCounts[i])
		}
		total += z.Count
	}
	if total != 6 {
		t.Errorf("total zone count = %d, want 6", total)
	}
	if zones[4].Max != nil {
		t.Error("Anaerobic zone should be unbounded above")
	}
}
