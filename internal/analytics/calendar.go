package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/doubledash/doubledash/internal/models"
)

// ErrInvalidStartDate is wrapped by every DataError produced while parsing start_date.
var ErrInvalidStartDate = errors.New("invalid start_date")

// DataError identifies the activity whose start_date could not be parsed.
type DataError struct {
	Index      int
	ActivityID int64
	Value      string
	Err        error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("activity %d (index %d): %v %q: %v", e.ActivityID, e.Index, ErrInvalidStartDate, e.Value, e.Err)
}

func (e *DataError) Unwrap() []error {
	return []error{ErrInvalidStartDate, e.Err}
}

// Calendar decides which calendar month and week an activity belongs to.
// Timestamps are converted into Location before bucketing, so grouping does
// not depend on the host's local zone.
type Calendar struct {
	Location *time.Location
}

// UTC is the default calendar.
var UTC = Calendar{Location: time.UTC}

// NewCalendar loads the named IANA zone. An empty name means UTC.
func NewCalendar(name string) (Calendar, error) {
	if name == "" || name == "UTC" {
		return UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return Calendar{Location: loc}, nil
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// localLayouts are accepted when start_date carries no offset.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse converts a start_date string into a time in the calendar's zone.
func (c Calendar) Parse(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty value")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(c.location()), nil
	}
	var lastErr error
	for _, layout := range localLayouts {
		t, err := time.ParseInLocation(layout, s, c.location())
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// StartTime parses the activity at index i, returning a *DataError on failure.
func (c Calendar) StartTime(i int, a models.Activity) (time.Time, error) {
	t, err := c.Parse(a.StartDate)
	if err != nil {
		return time.Time{}, &DataError{Index: i, ActivityID: a.ActivityID, Value: a.StartDate, Err: err}
	}
	return t, nil
}

// MonthKey returns "YYYY-MM" for t in the calendar's zone.
func (c Calendar) MonthKey(t time.Time) string {
	return t.In(c.location()).Format("2006-01")
}

// WeekStart returns midnight of the Sunday starting the week that contains t.
func (c Calendar) WeekStart(t time.Time) time.Time {
	t = t.In(c.location())
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.location())
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// WeekKey returns the ISO date of WeekStart(t).
func (c Calendar) WeekKey(t time.Time) string {
	return c.WeekStart(t).Format("2006-01-02")
}
