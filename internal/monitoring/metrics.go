// Package monitoring exposes Prometheus metrics for recommendation runs,
// pipeline stages, and completion calls.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors recorded by the pipeline and the completion
// clients. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	StageDuration     *prometheus.HistogramVec
	StageFailures     *prometheus.CounterVec
	CompletionCalls   *prometheus.CounterVec
	CompletionTokens  *prometheus.CounterVec
	CompletionCostUSD *prometheus.CounterVec
	ParseDegraded     *prometheus.CounterVec
	ParseDropped      prometheus.Counter
	BreakerState      *prometheus.GaugeVec
	CustomerLookups   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosssell_runs_total",
				Help: "Recommendation runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crosssell_run_duration_seconds",
				Help:    "End-to-end duration of a recommendation run",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crosssell_stage_duration_seconds",
				Help:    "Duration of each pipeline stage",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		StageFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosssell_stage_failures_total",
				Help: "Stages that set the run error",
			},
			[]string{"stage"},
		),
		CompletionCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosssell_completion_calls_total",
				Help: "Completion calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		CompletionTokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosssell_completion_tokens_total",
				Help: "Tokens consumed by completion calls",
			},
			[]string{"provider", "direction"},
		),
		CompletionCostUSD: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosssell_completion_cost_usd_total",
				Help: "Estimated completion spend in USD",
			},
			[]string{"provider"},
		),
		ParseDegraded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosssell_parse_degraded_total",
				Help: "Scored fields that fell back to a default value",
			},
			[]string{"field"},
		),
		ParseDropped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "crosssell_parse_dropped_total",
				Help: "Scored records dropped for missing product name or type",
			},
		),
		BreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crosssell_breaker_state",
				Help: "Completion circuit breaker state (0 closed, 1 open, 2 half-open)",
			},
			[]string{"provider"},
		),
		CustomerLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crosssell_customer_lookups_total",
				Help: "Customer lookups by data source and result",
			},
			[]string{"source", "result"},
		),
	}
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome(success)).Inc()
	m.RunDuration.Observe(d.Seconds())
}

// ObserveStage records one stage execution. failed is true when the stage
// itself set the run error.
func (m *Metrics) ObserveStage(stage string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if failed {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveCompletion records one completion call.
func (m *Metrics) ObserveCompletion(provider string, success bool, inputTokens, outputTokens int64, costUSD float64) {
	if m == nil {
		return
	}
	m.CompletionCalls.WithLabelValues(provider, outcome(success)).Inc()
	if !success {
		return
	}
	m.CompletionTokens.WithLabelValues(provider, "input").Add(float64(inputTokens))
	m.CompletionTokens.WithLabelValues(provider, "output").Add(float64(outputTokens))
	m.CompletionCostUSD.WithLabelValues(provider).Add(costUSD)
}

// ObserveParse records the outcome of parsing scored opportunities.
func (m *Metrics) ObserveParse(dropped int, degradedFields []string) {
	if m == nil {
		return
	}
	m.ParseDropped.Add(float64(dropped))
	for _, f := range degradedFields {
		m.ParseDegraded.WithLabelValues(f).Inc()
	}
}

// SetBreakerState publishes a breaker state for a provider.
func (m *Metrics) SetBreakerState(provider string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(provider).Set(float64(state))
}

// ObserveLookup records a customer lookup result: "found", "missing" or "error".
func (m *Metrics) ObserveLookup(source, result string) {
	if m == nil {
		return
	}
	m.CustomerLookups.WithLabelValues(source, result).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
