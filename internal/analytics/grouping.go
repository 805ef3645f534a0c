package analytics

import (
	"strings"
	"time"

	"github.com/doubledash/doubledash/internal/models"
)

// GroupByMonth buckets activities by "YYYY-MM" of their start_date.
func GroupByMonth(cal Calendar, activities []models.Activity) (map[string][]models.Activity, error) {
	return groupBy(cal, activities, cal.MonthKey)
}

// GroupByWeek buckets activities by the "YYYY-MM-DD" of the Sunday starting
// their week.
func GroupByWeek(cal Calendar, activities []models.Activity) (map[string][]models.Activity, error) {
	return groupBy(cal, activities, cal.WeekKey)
}

func groupBy(cal Calendar, activities []models.Activity, key func(time.Time) string) (map[string][]models.Activity, error) {
	groups := make(map[string][]models.Activity)
	for i, a := range activities {
		t, err := cal.StartTime(i, a)
		if err != nil {
			return nil, err
		}
		k := key(t)
		groups[k] = append(groups[k], a)
	}
	return groups, nil
}

// FilterByType keeps activities whose type matches activityType,
// case-insensitively. An empty activityType keeps everything.
func FilterByType(activities []models.Activity, activityType string) []models.Activity {
	result := make([]models.Activity, 0, len(activities))
	for _, a := range activities {
		if activityType == "" || strings.EqualFold(a.Type, activityType) {
			result = append(result, a)
		}
	}
	return result
}
