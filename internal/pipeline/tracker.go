package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Severity grades a caught hallucination.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

const startingPoints = 100

var severityPenalty = map[Severity]int{
	SeverityMinor:    3,
	SeverityMajor:    10,
	SeverityCritical: 20,
}

// TrackerStats counts the events behind a Tracker's points.
type TrackerStats struct {
	Extractions       int `json:"extractions"`
	Passed            int `json:"validations_passed"`
	Failed            int `json:"validations_failed"`
	Hallucinations    int `json:"hallucinations_detected"`
	FeedbackRelevant  int `json:"human_feedback_relevant"`
	FeedbackDismissed int `json:"human_feedback_irrelevant"`
}

// Tracker keeps a points ledger of extraction quality for one session.
// It is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	points int
	stats  TrackerStats
}

// NewTracker starts a ledger at 100 points.
func NewTracker() *Tracker {
	return &Tracker{points: startingPoints}
}

func (t *Tracker) adjust(delta int, reason string) {
	t.points += delta
	zap.L().Debug("tracker: points",
		zap.Int("delta", delta),
		zap.String("reason", reason),
		zap.Int("total", t.points),
	)
}

// RecordExtraction scores one validated extraction by its quality
// confidence: +10 above 0.8, +5 above 0.5, otherwise -5.
func (t *Tracker) RecordExtraction(passed bool, confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Extractions++
	switch {
	case passed && confidence > 0.8:
		t.stats.Passed++
		t.adjust(10, "high-quality extraction")
	case passed && confidence > 0.5:
		t.stats.Passed++
		t.adjust(5, "acceptable extraction")
	default:
		t.stats.Failed++
		t.adjust(-5, "poor quality extraction")
	}
}

// RecordHallucination deducts points by severity. Unknown severities cost 5.
func (t *Tracker) RecordHallucination(s Severity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Hallucinations++
	penalty, ok := severityPenalty[s]
	if !ok {
		penalty = 5
	}
	t.adjust(-penalty, string(s)+" hallucination")
}

// RecordFeedback awards 15 points for a relevant vendor and deducts 10 for
// an irrelevant one.
func (t *Tracker) RecordFeedback(relevant bool, vendor string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if relevant {
		t.stats.FeedbackRelevant++
		t.adjust(15, "relevant: "+vendor)
		return
	}
	t.stats.FeedbackDismissed++
	t.adjust(-10, "irrelevant: "+vendor)
}

// Points returns the current total.
func (t *Tracker) Points() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.points
}

// Stats returns a copy of the event counts.
func (t *Tracker) Stats() TrackerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// Grade maps points to a letter grade.
func Grade(points int) string {
	switch {
	case points >= 150:
		return "A+"
	case points >= 120:
		return "A"
	case points >= 100:
		return "B"
	case points >= 80:
		return "C"
	default:
		return "F"
	}
}

// Report renders the ledger as text.
func (t *Tracker) Report() string {
	t.mu.Lock()
	points, s := t.points, t.stats
	t.mu.Unlock()

	rate := 0.0
	if total := s.Passed + s.Failed; total > 0 {
		rate = float64(s.Passed) / float64(total) * 100
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Points: %d (grade %s)\n", points, Grade(points))
	fmt.Fprintf(&b, "Extraction success rate: %.1f%%\n", rate)
	fmt.Fprintf(&b, "Extractions: %d\n", s.Extractions)
	fmt.Fprintf(&b, "Passed validation: %d\n", s.Passed)
	fmt.Fprintf(&b, "Failed validation: %d\n", s.Failed)
	fmt.Fprintf(&b, "Hallucinations caught: %d\n", s.Hallucinations)
	fmt.Fprintf(&b, "Feedback relevant: %d\n", s.FeedbackRelevant)
	fmt.Fprintf(&b, "Feedback irrelevant: %d\n", s.FeedbackDismissed)
	return b.String()
}
