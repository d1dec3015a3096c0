package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(scansTotal, scanDuration, lockTimeoutsTotal)
}

var (
	scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scans_total",
			Help: "Scan decisions by resulting status and direction.",
		},
		[]string{"status", "direction"}, // status: entry, exit, reentry, duplicate, invalid, error
	)

	scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_duration_seconds",
			Help:    "End-to-end latency of a scan decision, lock wait included.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2, 4},
		},
	)

	lockTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lock_timeouts_total",
			Help: "Credential lock waits that exceeded the configured timeout.",
		},
		[]string{"operation"}, // scan, issue, reissue, invalidate
	)
)

// Label values come from scan input, so both are folded onto fixed sets.
var (
	scanStatuses   = map[string]bool{"entry": true, "exit": true, "reentry": true, "duplicate": true, "invalid": true, "error": true}
	scanDirections = map[string]bool{"in": true, "out": true}
)

func ObserveScan(status, direction string, took time.Duration) {
	status, direction = norm(status), norm(direction)
	if !scanStatuses[status] {
		status = "other"
	}
	if !scanDirections[direction] {
		direction = "invalid"
	}
	scansTotal.WithLabelValues(status, direction).Inc()
	scanDuration.Observe(took.Seconds())
}

func IncLockTimeout(operation string) {
	lockTimeoutsTotal.WithLabelValues(norm(operation)).Inc()
}
