package analytics

import (
	"math"
	"testing"

	"github.com/doubledash/doubledash/internal/models"
)

const eps = 0.001

func run(id int64, startDate string, meters, movingSeconds float64) models.Activity {
	return models.Activity{
		ActivityID: id,
		UserID:     "user-1",
		Type:       "Run",
		StartDate:  startDate,
		Distance:   meters,
		MovingTime: movingSeconds,
	}
}

func milesToMeters(mi float64) float64 {
	return mi * metersPerMile
}

func ptr(v float64) *float64 {
	return &v
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Errorf("%s = %.4f, want %.4f", name, got, want)
	}
}
