package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	agentRuns      *prometheus.CounterVec
	agentDuration  *prometheus.HistogramVec
	decisions      *prometheus.CounterVec
	predictions    *prometheus.CounterVec
	confidence     prometheus.Histogram
	opportunities  *prometheus.GaugeVec
	upstreamErrors *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		agentRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomarb_agent_runs_total",
				Help: "Total number of analysis agent runs",
			},
			[]string{"agent", "success"},
		),
		agentDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roomarb_agent_duration_seconds",
				Help:    "Duration of analysis agent runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomarb_decisions_total",
				Help: "Synthesized decisions by primary signal, strength and risk",
			},
			[]string{"signal", "strength", "risk"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomarb_price_predictions_total",
				Help: "Ensemble price predictions by risk label",
			},
			[]string{"risk"},
		),
		confidence: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "roomarb_price_prediction_confidence",
				Help:    "Confidence of ensemble price predictions",
				Buckets: []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95},
			},
		),
		opportunities: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "roomarb_opportunities",
				Help: "Opportunities found by the last scan of a city",
			},
			[]string{"city"},
		),
		upstreamErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "roomarb_upstream_errors_total",
				Help: "Failed collaborator calls by source",
			},
			[]string{"source"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "roomarb_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAgentRun records one agent execution.
func (r *Recorder) RecordAgentRun(agent string, success bool, seconds float64) {
	r.agentRuns.WithLabelValues(agent, strconv.FormatBool(success)).Inc()
	r.agentDuration.WithLabelValues(agent).Observe(seconds)
}

// RecordDecision records a synthesized decision.
func (r *Recorder) RecordDecision(signal, strength, risk string) {
	r.decisions.WithLabelValues(signal, strength, risk).Inc()
}

// RecordPrediction records an ensemble price prediction.
func (r *Recorder) RecordPrediction(risk string, confidence float64) {
	r.predictions.WithLabelValues(risk).Inc()
	r.confidence.Observe(confidence)
}

// RecordOpportunities records the result size of a city scan.
func (r *Recorder) RecordOpportunities(city string, n int) {
	r.opportunities.WithLabelValues(city).Set(float64(n))
}

// RecordUpstreamError records a failed collaborator call.
func (r *Recorder) RecordUpstreamError(source string) {
	r.upstreamErrors.WithLabelValues(source).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards all metrics.
type Nop struct{}

func (Nop) RecordAgentRun(string, bool, float64)  {}
func (Nop) RecordDecision(string, string, string) {}
func (Nop) RecordPrediction(string, float64)      {}
func (Nop) RecordOpportunities(string, int)       {}
func (Nop) RecordUpstreamError(string)            {}
func (Nop) RecordLatency(string, float64)         {}
