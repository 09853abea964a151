// Package observability provides Prometheus metrics for the pipeline.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wonny/newsquant/internal/contracts"
)

const namespace = "newsquant"

// Metrics holds all Prometheus metrics of the application.
// It also implements contracts.Observer so pipeline events feed it directly.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal         *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	StageItems        *prometheus.GaugeVec
	LastSuccessfulRun prometheus.Gauge

	// Decision metrics
	GateDecisions *prometheus.CounterVec
	Executions    *prometheus.CounterVec
	BatchFailures *prometheus.CounterVec

	// Evaluation metrics
	OutcomesRecorded prometheus.Counter
	ExcessReturnT7   prometheus.Histogram
}

// NewMetrics creates metrics registered on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of daily runs by result",
		}, []string{"result"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		StageItems: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_output_items",
			Help:      "Items produced by the last run of each stage",
		}, []string{"stage"}),
		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_successful_run_timestamp_seconds",
			Help:      "Unix time of the last run that finished without error",
		}),

		GateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "gate_decisions_total",
			Help:      "Risk gate decisions by reason",
		}, []string{"reason"}),
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "attempts_total",
			Help:      "Execution attempts by terminal state",
		}, []string{"state"}),
		BatchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "batch_failures_total",
			Help:      "Analysis batches skipped by reason",
		}, []string{"reason"}),

		OutcomesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "outcomes_recorded_total",
			Help:      "Outcomes written by the evaluator",
		}),
		ExcessReturnT7: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "excess_return_t7",
			Help:      "T+7 return over the benchmark",
			Buckets:   []float64{-0.2, -0.1, -0.05, -0.02, 0, 0.02, 0.05, 0.1, 0.2},
		}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OnEvent implements contracts.Observer
func (m *Metrics) OnEvent(e contracts.Event) {
	switch e.Type {
	case contracts.EventStageCompleted:
		if r := e.Result; r != nil {
			m.StageDuration.WithLabelValues(string(r.Stage)).Observe(float64(r.DurationMs) / 1000)
			m.StageItems.WithLabelValues(string(r.Stage)).Set(float64(r.OutputCount))
			if n, ok := e.Data["batch_failures"].(map[string]int); ok {
				for reason, count := range n {
					m.BatchFailures.WithLabelValues(reason).Add(float64(count))
				}
			}
		}
	case contracts.EventGateDecided:
		if reason, ok := e.Data["reason"].(string); ok {
			m.GateDecisions.WithLabelValues(reason).Inc()
		}
	case contracts.EventExecutionRecorded:
		if state, ok := e.Data["state"].(string); ok {
			m.Executions.WithLabelValues(state).Inc()
		}
	case contracts.EventRunFinished:
		result := "ok"
		if failed, _ := e.Data["failed"].(bool); failed {
			result = "error"
		} else {
			m.LastSuccessfulRun.Set(float64(e.Time.Unix()))
		}
		m.RunsTotal.WithLabelValues(result).Inc()
	case contracts.EventOutcomeRecorded:
		m.OutcomesRecorded.Inc()
		if excess, ok := e.Data["excess_t7"].(float64); ok {
			m.ExcessReturnT7.Observe(excess)
		}
	}
}
