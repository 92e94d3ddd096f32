package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/oem-scout/internal/model"
	"github.com/sells-group/oem-scout/internal/store"
)

// MetricsSnapshot holds a point-in-time view of validation health.
type MetricsSnapshot struct {
	// Validation outcomes within the lookback window.
	Validations   int            `json:"validations"`
	Passed        int            `json:"passed"`
	Rejected      int            `json:"rejected"`
	RejectionRate float64        `json:"rejection_rate"`
	ByLayer       map[string]int `json:"rejections_by_layer"`

	// Candidates saved within the window.
	Saved    int     `json:"saved"`
	AvgScore float64 `json:"avg_score"`

	// Accuracy ledger, when a source is attached.
	AccuracyPoints int  `json:"accuracy_points"`
	HasAccuracy    bool `json:"has_accuracy"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// GroundingFailures is the number of candidates rejected for values that
// could not be found in their source text.
func (s *MetricsSnapshot) GroundingFailures() int {
	return s.ByLayer[model.LayerGrounding]
}

// AccuracySource reports the running accuracy ledger total.
type AccuracySource interface {
	Points() int
}

// Collector gathers validation metrics from the store.
type Collector struct {
	store    store.Store
	accuracy AccuracySource
	now      func() time.Time
}

// NewCollector creates a collector. accuracy may be nil.
func NewCollector(st store.Store, accuracy AccuracySource) *Collector {
	return &Collector{store: st, accuracy: accuracy, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		ByLayer:       make(map[string]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	logs, err := c.store.ListValidationLogs(ctx, 0)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list validation logs")
	}
	for _, e := range logs {
		if e.At.Before(cutoff) {
			continue
		}
		snap.Validations++
		if e.Result.Passed {
			snap.Passed++
			continue
		}
		snap.Rejected++
		if f := e.Result.Failed(); f != nil {
			snap.ByLayer[f.Layer]++
		}
	}
	if snap.Validations > 0 {
		snap.RejectionRate = float64(snap.Rejected) / float64(snap.Validations)
	}

	candidates, err := c.store.ListCandidates(ctx, store.CandidateFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list candidates")
	}
	var total int
	for _, cand := range candidates {
		if cand.CreatedAt.Before(cutoff) {
			continue
		}
		snap.Saved++
		total += cand.Score
	}
	if snap.Saved > 0 {
		snap.AvgScore = float64(total) / float64(snap.Saved)
	}

	if c.accuracy != nil {
		snap.AccuracyPoints = c.accuracy.Points()
		snap.HasAccuracy = true
	}
	return snap, nil
}
