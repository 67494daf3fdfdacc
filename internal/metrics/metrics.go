// Package metrics exposes Prometheus collectors that report application-run activity.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/job-applier/internal/pipeline/steps"
	"github.com/jonathan/job-applier/internal/types"
)

const namespace = "job_applier"

// customAnswerLabel groups per-key custom answer actions to bound label cardinality
const customAnswerLabel = "custom_answer"

// Metrics holds the run collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	stepRecords *prometheus.CounterVec
	rejected    prometheus.Counter
	active      prometheus.Gauge
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		gatherer: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed application runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of application runs.",
			Buckets:   []float64{5, 10, 20, 30, 60, 120, 300},
		}),
		stepRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_records_total",
			Help:      "Step records produced by application runs.",
		}, []string{"action", "status"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Application requests rejected by validation.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Application runs currently holding a browser session.",
		}),
	}

	for _, c := range []prometheus.Collector{m.runs, m.runDuration, m.stepRecords, m.rejected, m.active} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// RunStarted marks a run as active; call the returned func when it ends
func (m *Metrics) RunStarted() func() {
	if m == nil {
		return func() {}
	}
	m.active.Inc()
	return m.active.Dec
}

// ObserveRun records a finished run and every step record it produced
func (m *Metrics) ObserveRun(result *types.ApplicationResult, duration time.Duration) {
	if m == nil || result == nil {
		return
	}
	outcome := "completed"
	if !result.Success {
		outcome = "aborted"
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())

	for _, rec := range result.Steps {
		m.stepRecords.WithLabelValues(ActionLabel(rec.Action), string(rec.Status)).Inc()
	}
}

// Rejected counts a request that failed validation
func (m *Metrics) Rejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

var knownActions = func() map[string]bool {
	known := map[string]bool{
		steps.ActionURLVerify:   true,
		steps.ActionScreenshot:  true,
		steps.ActionCoverLetter: true,
		steps.ActionAutomation:  true,
		steps.ActionCleanup:     true,
		steps.ActionValidate:    true,
	}
	for _, def := range steps.Sequence {
		known[def.Name] = true
	}
	return known
}()

// ActionLabel maps a record action to a bounded metric label
func ActionLabel(action string) string {
	if knownActions[action] {
		return action
	}
	return customAnswerLabel
}
