// Package metrics exposes Prometheus instrumentation for the automation
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Candidate outcome label values.
const (
	OutcomePublished = "published"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// Metrics owns a dedicated registry so tests never collide on the global
// default.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal       prometheus.Counter
	CandidatesTotal *prometheus.CounterVec
	RunDuration     prometheus.Summary
	QualityScore    prometheus.Histogram
}

// New builds the metric set and registers it together with the standard
// process and Go collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "travelreport",
			Name:      "automation_runs_total",
			Help:      "Completed automation runs.",
		}),
		CandidatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "travelreport",
			Name:      "candidates_total",
			Help:      "Processed feed candidates by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace:  "travelreport",
			Name:       "run_duration_seconds",
			Help:       "Wall-clock duration of automation runs.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
		QualityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "travelreport",
			Name:      "quality_score",
			Help:      "Aggregate quality scores of gated candidates.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.CandidatesTotal,
		m.RunDuration,
		m.QualityScore,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
