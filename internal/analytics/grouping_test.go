package analytics

import (
	"errors"
	"testing"

	"github.com/doubledash/doubledash/internal/models"
)

// TestGroupByMonth verifies month buckets are independent of input order.
func TestGroupByMonth(t *testing.T) {
	acts := []models.Activity{
		run(1, "2024-02-10T07:00:00Z", 10000, 3000),
		run(2, "2024-01-05T07:00:00Z", 5000, 1500),
		run(3, "2024-01-28T18:30:00Z", 8000, 2400),
	}

	groups, err := GroupByMonth(UTC, acts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if n := len(groups["2024-01"]); n != 2 {
		t.Errorf("2024-01 = %d activities, want 2", n)
	}
	if n := len(groups["2024-02"]); n != 1 {
		t.Errorf("2024-02 = %d activities, want 1", n)
	}
}

// TestGroupByWeek verifies activities are keyed by the Sunday starting their week.
func TestGroupByWeek(t *testing.T) {
	acts := []models.Activity{
		run(1, "2024-01-07T07:00:00Z", 5000, 1500), // Sunday
		run(2, "2024-01-13T07:00:00Z", 5000, 1500), // Saturday, same week
		run(3, "2024-01-14T07:00:00Z", 5000, 1500), // next Sunday
	}

	groups, err := GroupByWeek(UTC, acts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(groups["2024-01-07"]); n != 2 {
		t.Errorf("week 2024-01-07 = %d activities, want 2", n)
	}
	if n := len(groups["2024-01-14"]); n != 1 {
		t.Errorf("week 2024-01-14 = %d activities, want 1", n)
	}
}

// TestGroupingMalformedDate verifies that grouping fails loudly instead of
// dropping a record with an unparsable start_date.
func TestGroupingMalformedDate(t *testing.T) {
	acts := []models.Activity{
		run(1, "2024-01-07T07:00:00Z", 5000, 1500),
		run(2, "not-a-date", 5000, 1500),
	}

	for name, group := range map[string]func(Calendar, []models.Activity) (map[string][]models.Activity, error){
		"month": GroupByMonth,
		"week":  GroupByWeek,
	} {
		_, err := group(UTC, acts)
		var de *DataError
		if !errors.As(err, &de) {
			t.Fatalf("%s: error = %v, want *DataError", name, err)
		}
		if de.ActivityID != 2 || de.Index != 1 {
			t.Errorf("%s: DataError = %+v, want activity 2 at index 1", name, de)
		}
	}
}

// TestFilterByType verifies case-insensitive type filtering without mutating input.
func TestFilterByType(t *testing.T) {
	acts := []models.Activity{
		{ActivityID: 1, Type: "Run"},
		{ActivityID: 2, Type: "Ride"},
		{ActivityID: 3, Type: "run"},
	}

	runs := FilterByType(acts, "RUN")
	if len(runs) != 2 {
		t.Fatalf("FilterByType(RUN) = %d, want 2", len(runs))
	}
	if all := FilterByType(acts, ""); len(all) != 3 {
		t.Errorf("FilterByType(\"\") = %d, want 3", len(all))
	}
	if len(acts) != 3 || acts[1].Type != "Ride" {
		t.Error("input slice was modified")
	}
}
