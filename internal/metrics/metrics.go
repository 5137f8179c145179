// Package metrics exposes Prometheus counters for credential actions.
//
// snowcred runs as a one-shot process, so the registry is not served over HTTP.
// The CLI writes it to a node-exporter textfile instead (see WriteTextfile).
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	actionTotal       *prometheus.CounterVec
	actionErrorsTotal *prometheus.CounterVec
	actionDuration    *prometheus.HistogramVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// ActionMetrics records the outcome of credential actions.
type ActionMetrics struct{}

// NewActionMetrics creates a new ActionMetrics instance.
// Nothing is recorded until InitMetrics has been called.
func NewActionMetrics() *ActionMetrics {
	return &ActionMetrics{}
}

// InitMetrics registers all collectors with the default registry. Safe to call
// more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		actionTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snowcred_action_total",
				Help: "Total number of credential actions by result",
			},
			[]string{"action", "result"},
		)

		actionErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snowcred_action_errors_total",
				Help: "Total number of failed credential actions by result code",
			},
			[]string{"action", "code"},
		)

		actionDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snowcred_action_duration_seconds",
				Help:    "Duration of credential actions in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"action"},
		)

		metricsRegistered = true
	})
}

// RecordAction records one finished action. code is the result code handed to
// the host; zero is success.
func (m *ActionMetrics) RecordAction(action string, code int, durationSeconds float64) {
	if !metricsRegistered {
		return
	}

	result := ResultSuccess
	if code != 0 {
		result = ResultFailure
		actionErrorsTotal.WithLabelValues(action, strconv.Itoa(code)).Inc()
	}
	actionTotal.WithLabelValues(action, result).Inc()
	actionDuration.WithLabelValues(action).Observe(durationSeconds)
}

// WriteTextfile writes every metric in the default gatherer to path in the
// node-exporter textfile format. The file is replaced atomically.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// GetActionTotal returns the action counter for testing.
func GetActionTotal() *prometheus.CounterVec {
	return actionTotal
}

// GetActionErrorsTotal returns the action error counter for testing.
func GetActionErrorsTotal() *prometheus.CounterVec {
	return actionErrorsTotal
}

// GetActionDuration returns the action duration histogram for testing.
func GetActionDuration() *prometheus.HistogramVec {
	return actionDuration
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered
}
