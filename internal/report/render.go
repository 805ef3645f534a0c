// Package report turns a computed dashboard into a plain-text training report.
package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/doubledash/doubledash/internal/analytics"
	"github.com/guptarohit/asciigraph"
)

// Options controls the weekly chart size.
type Options struct {
	Width  int
	Height int
}

// Render writes d to w as text sections followed by a weekly-distance chart.
func Render(w io.Writer, d *analytics.Dashboard, opts Options) error {
	if opts.Width < 20 {
		opts.Width = 20
	}
	if opts.Height < 3 {
		opts.Height = 3
	}

	var b strings.Builder

	s := d.Summary
	fmt.Fprintln(&b, "=== Summary ===")
	fmt.Fprintf(&b, "  Activities:   %d\n", s.TotalActivities)
	fmt.Fprintf(&b, "  Distance:     %.1f mi\n", analytics.MetersToMiles(s.TotalDistance))
	fmt.Fprintf(&b, "  Moving time:  %.1f h\n", analytics.SecondsToHours(s.TotalMovingTime))
	fmt.Fprintf(&b, "  Elevation:    %.0f ft\n", analytics.MetersToFeet(s.TotalElevation))
	for _, typ := range slices.Sorted(maps.Keys(s.ActivityTypes)) {
		fmt.Fprintf(&b, "    %-12s %d\n", typ, s.ActivityTypes[typ])
	}
	fmt.Fprintln(&b)

	if len(d.Monthly) > 0 {
		fmt.Fprintln(&b, "=== Monthly ===")
		fmt.Fprintf(&b, "  %-8s %5s %8s %7s %8s %6s\n", "Month", "Runs", "Miles", "Hours", "Elev ft", "Pace")
		for _, m := range d.Monthly {
			fmt.Fprintf(&b, "  %-8s %5d %8.1f %7.1f %8.0f %6s\n",
				m.Month, m.TotalRuns, m.TotalDistance, m.TotalTime, m.TotalElevation, analytics.FormatPace(m.AvgPace))
		}
		fmt.Fprintln(&b)
	}

	if t := d.Trends; t != nil {
		fmt.Fprintf(&b, "=== Trends (%s vs %s) ===\n", t.CurrentMonth, t.PreviousMonth)
		fmt.Fprintf(&b, "  Distance:   %s\n", formatChange(t.DistanceChange))
		fmt.Fprintf(&b, "  Pace:       %s\n", formatChange(t.PaceChange))
		fmt.Fprintf(&b, "  Runs:       %s\n", formatChange(t.RunsChange))
		fmt.Fprintf(&b, "  Elevation:  %s\n", formatChange(t.ElevationChange))
		fmt.Fprintln(&b)
	}

	if len(d.PersonalRecords) > 0 {
		fmt.Fprintln(&b, "=== Personal Records ===")
		for _, pr := range d.PersonalRecords {
			fmt.Fprintf(&b, "  %-14s %9s  %s/mi  %s\n",
				pr.Distance, formatDuration(pr.Time), pr.FormattedPace, pr.Date)
		}
		fmt.Fprintln(&b)
	}

	writeBuckets(&b, "Pace Distribution (min/mi)", d.PaceDistribution)
	writeBuckets(&b, "Distance Distribution", d.DistanceDistribution)

	if d.HeartRateZones != nil {
		fmt.Fprintln(&b, "=== Heart Rate Zones ===")
		for _, z := range d.HeartRateZones {
			fmt.Fprintf(&b, "  %-10s %4d\n", z.Zone, z.Count)
		}
		fmt.Fprintln(&b)
	}

	if len(d.Weekly) > 0 {
		data := make([]float64, len(d.Weekly))
		for i, wk := range d.Weekly {
			data[i] = wk.TotalDistance
		}
		caption := fmt.Sprintf("Weekly miles, %s to %s", d.Weekly[0].Week, d.Weekly[len(d.Weekly)-1].Week)
		fmt.Fprintln(&b, asciigraph.Plot(data,
			asciigraph.Height(opts.Height),
			asciigraph.Width(opts.Width),
			asciigraph.Caption(caption),
		))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeBuckets(b *strings.Builder, title string, buckets []analytics.DistributionBucket) {
	fmt.Fprintf(b, "=== %s ===\n", title)
	for _, bk := range buckets {
		fmt.Fprintf(b, "  %-8s %4d %s\n", bk.Range, bk.Count, strings.Repeat("#", bk.Count))
	}
	fmt.Fprintln(b)
}

func formatChange(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", *pct)
}

// formatDuration renders seconds as H:MM:SS, or M:SS under an hour.
func formatDuration(seconds float64) string {
	total := int(seconds + 0.5)
	h, m, s := total/3600, total%3600/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
