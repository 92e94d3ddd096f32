package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/oem-scout/internal/model"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	switch {
	case pb.Counter != nil:
		return pb.GetCounter().GetValue()
	case pb.Histogram != nil:
		return float64(pb.GetHistogram().GetSampleCount())
	}
	return 0
}

func TestMetrics_Observe(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOutcome("saved")
	m.ObserveOutcome("saved")
	m.ObserveOutcome("validation_failed")
	m.ObserveValidation(model.ValidationResult{Layers: []model.LayerResult{
		{Layer: model.LayerFormat, Passed: true},
		{Layer: model.LayerConstraints, Passed: false},
		{Layer: model.LayerCrossField, Passed: false},
	}})
	m.ObserveScore(92)
	m.ObserveExtract(1500*time.Millisecond, true)
	m.ObserveExtract(time.Second, false)
	m.ObserveFeedback(model.SentimentPositive)

	assert.InDelta(t, 2, value(t, m.Outcomes.WithLabelValues("saved")), 0)
	assert.InDelta(t, 1, value(t, m.Outcomes.WithLabelValues("validation_failed")), 0)
	assert.InDelta(t, 1, value(t, m.LayerFailures.WithLabelValues(model.LayerConstraints)), 0)
	assert.InDelta(t, 0, value(t, m.LayerFailures.WithLabelValues(model.LayerFormat)), 0)
	assert.InDelta(t, 1, value(t, m.ExtractFallbacks), 0)
	assert.InDelta(t, 1, value(t, m.FeedbackEvents.WithLabelValues("positive")), 0)
	assert.InDelta(t, 1, value(t, m.Scores), 0)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOutcome("saved")
		m.ObserveValidation(model.ValidationResult{})
		m.ObserveScore(10)
		m.ObserveExtract(time.Second, true)
		m.ObserveFeedback(model.SentimentNegative)
	})
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
