// Package observability holds the Prometheus collectors shared by the API
// server and the sync tools.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "doubledash"

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	syncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "runs_total",
		Help:      "Completed activity imports by source and final status.",
	}, []string{"source", "status"})
	syncActivities = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "activities_total",
		Help:      "Activities seen by imports, split into received and written.",
	}, []string{"source", "result"})
	lastSyncGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful import.",
	})
	analyticsDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "analytics",
		Name:      "compute_duration_seconds",
		Help:      "Time spent computing an analytics view over a user's activities.",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"view"})
	analyticsErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "analytics",
		Name:      "errors_total",
		Help:      "Analytics views that failed, usually on a malformed start date.",
	}, []string{"view"})
)

func init() {
	prometheus.MustRegister(httpRequests, httpDuration, syncRuns, syncActivities, lastSyncGauge, analyticsDuration, analyticsErrors)
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordSync records the outcome of one import run.
func RecordSync(source, status string, received int, written int64, at time.Time) {
	syncRuns.WithLabelValues(source, status).Inc()
	syncActivities.WithLabelValues(source, "received").Add(float64(received))
	syncActivities.WithLabelValues(source, "written").Add(float64(written))
	if status == "success" && !at.IsZero() {
		lastSyncGauge.Set(float64(at.Unix()))
	}
}

// ObserveAnalytics records how long an analytics view took to compute and
// whether it failed.
func ObserveAnalytics(view string, d time.Duration, err error) {
	analyticsDuration.WithLabelValues(view).Observe(d.Seconds())
	if err != nil {
		analyticsErrors.WithLabelValues(view).Inc()
	}
}
