package analytics

import (
	"math"

	"github.com/doubledash/doubledash/internal/models"
)

// DistributionBucket is one histogram bin covering [Min, Max). A nil Max
// means the bin is unbounded above.
type DistributionBucket struct {
	Range string   `json:"range"`
	Min   float64  `json:"min"`
	Max   *float64 `json:"max"`
	Count int      `json:"count"`
}

type bucketBound struct {
	label string
	min   float64
	max   float64
}

func (b bucketBound) contains(v float64) bool {
	return v >= b.min && v < b.max
}

var paceBuckets = []bucketBound{
	{"< 6:00", math.Inf(-1), 6},
	{"6:00-7:00", 6, 7},
	{"7:00-8:00", 7, 8},
	{"8:00-9:00", 8, 9},
	{"9:00-10:00", 9, 10},
	{"10:00+", 10, math.Inf(1)},
}

var distanceBuckets = []bucketBound{
	{"< 3 mi", math.Inf(-1), 3},
	{"3-5 mi", 3, 5},
	{"5-10 mi", 5, 10},
	{"10-15 mi", 10, 15},
	{"15+ mi", 15, math.Inf(1)},
}

// maxPlausiblePace excludes walks, pauses and GPS noise from the pace histogram.
const maxPlausiblePace = 20.0

// PaceDistribution counts activities per pace bucket (min/mile). Only paces
// in the open interval (0, 20) are counted.
func PaceDistribution(activities []models.Activity) []DistributionBucket {
	values := make([]float64, 0, len(activities))
	for _, a := range activities {
		pace := PacePerMile(a.MovingTime, a.Distance)
		if pace > 0 && pace < maxPlausiblePace {
			values = append(values, pace)
		}
	}
	return histogram(paceBuckets, values)
}

// DistanceDistribution counts every activity into a distance bucket (miles).
func DistanceDistribution(activities []models.Activity) []DistributionBucket {
	values := make([]float64, 0, len(activities))
	for _, a := range activities {
		values = append(values, MetersToMiles(a.Distance))
	}
	return histogram(distanceBuckets, values)
}

func histogram(bounds []bucketBound, values []float64) []DistributionBucket {
	result := make([]DistributionBucket, len(bounds))
	for i, b := range bounds {
		result[i] = newBucket(b)
	}
	for _, v := range values {
		for i, b := range bounds {
			if b.contains(v) {
				result[i].Count++
				break
			}
		}
	}
	return result
}

func newBucket(b bucketBound) DistributionBucket {
	db := DistributionBucket{Range: b.label}
	if !math.IsInf(b.min, -1) {
		db.Min = b.min
	}
	if !math.IsInf(b.max, 1) {
		upper := b.max
		db.Max = &upper
	}
	return db
}

// HeartRateZone is one average-heart-rate band in beats per minute.
type HeartRateZone struct {
	Zone  string   `json:"zone"`
	Min   float64  `json:"min"`
	Max   *float64 `json:"max"`
	Count int      `json:"count"`
}

var heartRateBounds = []bucketBound{
	{"Recovery", 0, 140},
	{"Aerobic", 140, 160},
	{"Threshold", 160, 180},
	{"VO2 Max", 180, 200},
	{"Anaerobic", 200, math.Inf(1)},
}

// HeartRateZones buckets activities by average heart rate. Activities without
// heart-rate data are excluded, never counted as zero. It returns nil when no
// activity carries heart-rate data, which is distinct from zones with zero counts.
func HeartRateZones(activities []models.Activity) []HeartRateZone {
	values := make([]float64, 0, len(activities))
	for _, a := range activities {
		if !a.HasHeartrate || a.AverageHeartrate == nil || a.MaxHeartrate == nil {
			continue
		}
		values = append(values, *a.AverageHeartrate)
	}
	if len(values) == 0 {
		return nil
	}

	buckets := histogram(heartRateBounds, values)
	zones := make([]HeartRateZone, len(buckets))
	for i, b := range buckets {
		zones[i] = HeartRateZone{Zone: b.Range, Min: b.Min, Max: b.Max, Count: b.Count}
	}
	return zones
}
