// Package metrics exports Prometheus metrics for the discovery pipeline and
// the feedback webhook.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/oem-scout/internal/model"
)

const namespace = "oemscout"

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Outcomes         *prometheus.CounterVec
	LayerFailures    *prometheus.CounterVec
	Scores           prometheus.Histogram
	ExtractFallbacks prometheus.Counter
	ExtractDuration  prometheus.Histogram
	FeedbackEvents   *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidates processed, by terminal status",
		}, []string{"status"}),
		LayerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_layer_failures_total",
			Help:      "Validation layer failures, by layer",
		}, []string{"layer"}),
		Scores: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_score",
			Help:      "Final score of admitted candidates",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		ExtractFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_fallbacks_total",
			Help:      "Extractions served by the pattern fallback after retries ran out",
		}),
		ExtractDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_duration_seconds",
			Help:      "Time spent extracting one candidate, retries included",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		FeedbackEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_events_total",
			Help:      "Human feedback events, by sentiment",
		}, []string{"sentiment"}),
	}
}

// ObserveOutcome counts a candidate's terminal status.
func (m *Metrics) ObserveOutcome(status string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(status).Inc()
}

// ObserveValidation counts every failed layer of r.
func (m *Metrics) ObserveValidation(r model.ValidationResult) {
	if m == nil {
		return
	}
	for _, l := range r.Layers {
		if !l.Passed {
			m.LayerFailures.WithLabelValues(l.Layer).Inc()
		}
	}
}

// ObserveScore records an admitted candidate's score.
func (m *Metrics) ObserveScore(score int) {
	if m == nil {
		return
	}
	m.Scores.Observe(float64(score))
}

// ObserveExtract records extraction time and whether the fallback served it.
func (m *Metrics) ObserveExtract(d time.Duration, fallback bool) {
	if m == nil {
		return
	}
	m.ExtractDuration.Observe(d.Seconds())
	if fallback {
		m.ExtractFallbacks.Inc()
	}
}

// ObserveFeedback counts a recorded judgment.
func (m *Metrics) ObserveFeedback(s model.Sentiment) {
	if m == nil {
		return
	}
	m.FeedbackEvents.WithLabelValues(string(s)).Inc()
}
