package analytics

import (
	"testing"
	"time"

	"github.com/doubledash/doubledash/internal/models"
)

// TestMonthlyStatsScenario verifies one row per month in ascending order
// with converted totals.
func TestMonthlyStatsScenario(t *testing.T) {
	acts := []models.Activity{
		run(2, "2024-02-10T08:00:00Z", 10000, 3000),
		run(1, "2024-01-05T08:00:00Z", 5000, 1500),
	}

	months, err := MonthlyStats(UTC, acts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(months) != 2 {
		t.Fatalf("months = %d, want 2", len(months))
	}
	if months[0].Month != "2024-01" || months[1].Month != "2024-02" {
		t.Fatalf("months = [%s %s], want [2024-01 2024-02]", months[0].Month, months[1].Month)
	}

	jan := months[0]
	if jan.TotalRuns != 1 {
		t.Errorf("jan.TotalRuns = %d, want 1", jan.TotalRuns)
	}
	approx(t, "jan.TotalDistance", jan.TotalDistance, 3.1069)
	approx(t, "jan.TotalTime", jan.TotalTime, 1500.0/3600)
	approx(t, "jan.AvgPace", jan.AvgPace, 8.0467)

	feb := months[1]
	if feb.TotalRuns != 1 {
		t.Errorf("feb.TotalRuns = %d, want 1", feb.TotalRuns)
	}
	approx(t, "feb.TotalDistance", feb.TotalDistance, 6.2137)
}

// TestMonthlyStatsAveraging verifies that AvgPace is the mean of individual
// paces (not pace from totals) and that zero-distance sentinels are left out.
func TestMonthlyStatsAveraging(t *testing.T) {
	acts := []models.Activity{
		run(1, "2024-03-01T08:00:00Z", 5000, 1500),  // 8.0467 min/mi
		run(2, "2024-03-15T08:00:00Z", 10000, 3600), // 9.6560 min/mi
		run(3, "2024-03-20T08:00:00Z", 0, 1800),     // treadmill, no distance
	}

	months, err := MonthlyStats(UTC, acts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(months) != 1 {
		t.Fatalf("months = %d, want 1", len(months))
	}

	m := months[0]
	if m.TotalRuns != 3 {
		t.Errorf("TotalRuns = %d, want 3", m.TotalRuns)
	}
	approx(t, "AvgPace", m.AvgPace, (8.0467+9.6560)/2)
	approx(t, "AvgDistance", m.AvgDistance, (3.1069+6.2137)/3)
	approx(t, "TotalElevation", m.TotalElevation, 0)
}

// TestMonthlyStatsEmpty verifies an empty, non-nil result for no activities.
func TestMonthlyStatsEmpty(t *testing.T) {
	months, err := MonthlyStats(UTC, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if months == nil || len(months) != 0 {
		t.Errorf("MonthlyStats(nil) = %#v, want empty slice", months)
	}
}

// TestMonthlyStatsNoZeroFill verifies that months without activity are not
// emitted, in contrast to the weekly rollup.
func TestMonthlyStatsNoZeroFill(t *testing.T) {
	acts := []models.Activity{
		run(1, "2024-01-05T08:00:00Z", 5000, 1500),
		run(2, "2024-04-05T08:00:00Z", 5000, 1500),
	}

	months, err := MonthlyStats(UTC, acts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(months) != 2 {
		t.Errorf("months = %d, want 2 (no Feb/Mar rows)", len(months))
	}
}

// TestWeeklyStatsZeroFill verifies exactly windowWeeks rows, oldest first,
// with empty weeks present as zero rows.
func TestWeeklyStatsZeroFill(t *testing.T) {
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC) // Wednesday
	acts := []models.Activity{
		run(1, "2024-03-11T07:00:00Z", 5000, 1500),
		run(2, "2024-02-20T07:00:00Z", 8000, 2400),
		run(3, "2023-06-01T07:00:00Z", 8000, 2400), // outside window
	}

	weeks, err := WeeklyStats(UTC, acts, 4, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(weeks) != 4 {
		t.Fatalf("weeks = %d, want 4", len(weeks))
	}

	wantKeys := []string{"2024-02-18", "2024-02-25", "2024-03-03", "2024-03-10"}
	wantRuns := []int{1, 0, 0, 1}
	for i, w := range weeks {
		if w.Week != wantKeys[i] {
			t.Errorf("weeks[%d].Week = %q, want %q", i, w.Week, wantKeys[i])
		}
		if w.TotalRuns != wantRuns[i] {
			t.Errorf("weeks[%d].TotalRuns = %d, want %d", i, w.TotalRuns, wantRuns[i])
		}
	}
	approx(t, "weeks[3].TotalDistance", weeks[3].TotalDistance, 3.1069)
	approx(t, "weeks[1].AvgPace", weeks[1].AvgPace, 0)
}

// TestWeeklyStatsAlwaysWindowSized verifies the row count holds with no
// activities at all, and that a non-positive window yields no rows.
func TestWeeklyStatsAlwaysWindowSized(t *testing.T) {
	now := time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)

	weeks, err := WeeklyStats(UTC, nil, 4, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(weeks) != 4 {
		t.Errorf("weeks = %d, want 4", len(weeks))
	}

	weeks, err = WeeklyStats(UTC, nil, 0, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(weeks) != 0 {
		t.Errorf("weeks = %d, want 0", len(weeks))
	}
}

// TestRollupsMalformedDate verifies that rollups surface the DataError.
func TestRollupsMalformedDate(t *testing.T) {
	acts := []models.Activity{run(9, "2024-13-45", 5000, 1500)}

	if _, err := MonthlyStats(UTC, acts); err == nil {
		t.Error("MonthlyStats: expected error")
	}
	if _, err := WeeklyStats(UTC, acts, 4, time.Now()); err == nil {
		t.Error("WeeklyStats: expected error")
	}
}
