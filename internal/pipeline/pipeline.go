// Package pipeline runs each candidate listing through extraction,
// validation, scoring and persistence, and drives batches of listings with
// a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/oem-scout/internal/config"
	"github.com/sells-group/oem-scout/internal/extract"
	"github.com/sells-group/oem-scout/internal/feed"
	"github.com/sells-group/oem-scout/internal/feedback"
	"github.com/sells-group/oem-scout/internal/metrics"
	"github.com/sells-group/oem-scout/internal/model"
	"github.com/sells-group/oem-scout/internal/quality"
	"github.com/sells-group/oem-scout/internal/scorer"
	"github.com/sells-group/oem-scout/internal/store"
	"github.com/sells-group/oem-scout/internal/validate"
)

// Status is the terminal state of one candidate.
type Status string

const (
	StatusSkipped          Status = "skipped"
	StatusExtractionFailed Status = "extraction_failed"
	StatusValidationFailed Status = "validation_failed"
	StatusScoringFailed    Status = "scoring_failed"
	StatusSaveSkipped      Status = "save_skipped"
	StatusSaveFailed       Status = "save_failed"
	StatusSaved            Status = "saved"
)

// Result is the outcome of processing one listing. Reason explains every
// non-saved status.
type Result struct {
	Status     Status                 `json:"status"`
	Vendor     string                 `json:"vendor_name,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Candidate  *model.Candidate       `json:"candidate,omitempty"`
	Validation model.ValidationResult `json:"validation"`
	Breakdown  *scorer.Breakdown      `json:"breakdown,omitempty"`
	// Duplicate is set when the store already held this (vendor, URL).
	Duplicate bool  `json:"duplicate,omitempty"`
	Err       error `json:"-"`
}

// Validated reports whether the validator ran for this result.
func (r Result) Validated() bool { return len(r.Validation.Layers) > 0 }

// RubricScorer scores an admitted candidate; *scorer.Scorer implements it.
type RubricScorer interface {
	Score(a validate.Admitted, learned int) (scorer.Breakdown, error)
}

// Pipeline processes single listings. It is safe for concurrent use.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	extractor *extract.Extractor
	validator *validate.Validator
	scorer    RubricScorer
	learner   *feedback.Learner
	history   *History
	metrics   *metrics.Metrics
	tracker   *Tracker
	runID     string
}

// Deps are the collaborators of a Pipeline. Metrics and Tracker may be nil.
type Deps struct {
	Store     store.Store
	Extractor *extract.Extractor
	Validator *validate.Validator
	Scorer    RubricScorer
	Learner   *feedback.Learner
	History   *History
	Metrics   *metrics.Metrics
	Tracker   *Tracker
}

// New creates a Pipeline. runID tags every saved candidate.
func New(cfg *config.Config, d Deps, runID string) *Pipeline {
	if d.History == nil {
		d.History = NewHistory(nil)
	}
	if d.Tracker == nil {
		d.Tracker = NewTracker()
	}
	return &Pipeline{
		cfg:       cfg,
		store:     d.Store,
		extractor: d.Extractor,
		validator: d.Validator,
		scorer:    d.Scorer,
		learner:   d.Learner,
		history:   d.History,
		metrics:   d.Metrics,
		tracker:   d.Tracker,
		runID:     runID,
	}
}

// Tracker returns the pipeline's points ledger.
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

// Process runs one listing to a terminal status. It never returns an error;
// failures are reported through the Result.
func (p *Pipeline) Process(ctx context.Context, l feed.Listing) Result {
	res := p.process(ctx, l)
	p.metrics.ObserveOutcome(string(res.Status))

	log := zap.L().With(zap.String("phase", "pipeline"), zap.String("vendor", res.Vendor), zap.String("status", string(res.Status)))
	switch res.Status {
	case StatusSaved:
		log.Info("pipeline: candidate saved", zap.Int("score", res.Candidate.Score), zap.Bool("duplicate", res.Duplicate))
	case StatusScoringFailed:
		log.Error("pipeline: candidate not scored", zap.String("reason", res.Reason), zap.Error(res.Err))
	case StatusSaveFailed:
		log.Error("pipeline: candidate not persisted", zap.String("reason", res.Reason), zap.Error(res.Err))
	default:
		log.Info("pipeline: candidate discarded", zap.String("reason", res.Reason))
	}
	return res
}

func (p *Pipeline) process(ctx context.Context, l feed.Listing) Result {
	res := Result{Vendor: l.Vendor}

	if l.Vendor != "" {
		if skip, reason := p.skipVendor(ctx, l.Vendor); skip {
			res.Status, res.Reason = StatusSkipped, reason
			return res
		}
	}

	raw, err := p.extract(ctx, l)
	if err != nil {
		res.Status, res.Err = StatusExtractionFailed, err
		res.Reason = err.Error()
		return res
	}

	if l.Vendor == "" {
		if name, _ := raw.Fields[model.FieldVendorName].(string); name != "" {
			res.Vendor = name
			if skip, reason := p.skipVendor(ctx, name); skip {
				res.Status, res.Reason = StatusSkipped, reason
				return res
			}
		}
	}

	admitted, vr := p.validator.Validate(raw, p.history.Snapshot())
	res.Validation = vr
	p.metrics.ObserveValidation(vr)
	if !admitted.OK() {
		p.trackRejection(vr)
		res.Status = StatusValidationFailed
		if failed := vr.Failed(); failed != nil {
			res.Reason = failed.Layer + ": " + failed.Reason
		}
		return res
	}

	c := admitted.Candidate()
	res.Candidate = c
	res.Vendor = c.VendorName
	p.trackAdmitted(c)

	if p.cfg.Pipeline.QualityGate && !c.Quality.Passed {
		res.Status = StatusValidationFailed
		res.Reason = fmt.Sprintf("quality: confidence %.2f; %s", c.Quality.Confidence, strings.Join(c.Quality.Issues, "; "))
		return res
	}

	learned, err := p.learner.ScoringBoost(ctx, c)
	if err != nil {
		zap.L().Warn("pipeline: learned boost unavailable", zap.String("vendor", c.VendorName), zap.Error(err))
		learned = 0
	}

	b, err := p.scorer.Score(admitted, learned)
	if err != nil {
		res.Status, res.Err, res.Reason = StatusScoringFailed, err, err.Error()
		return res
	}
	res.Breakdown = &b
	c.Score = b.Score
	p.metrics.ObserveScore(b.Score)

	if b.Score < p.cfg.Pipeline.MinSaveScore {
		res.Status = StatusSaveSkipped
		res.Reason = fmt.Sprintf("score %d below %d", b.Score, p.cfg.Pipeline.MinSaveScore)
		return res
	}

	c.RunID = p.runID
	if l.URL != "" && c.ProductURL == nil {
		c.ProductURL = model.Str(l.URL)
	}
	inserted, err := p.store.SaveCandidate(ctx, c)
	if err != nil {
		res.Status, res.Err, res.Reason = StatusSaveFailed, err, err.Error()
		return res
	}
	res.Status = StatusSaved
	res.Duplicate = !inserted
	if inserted {
		p.history.Add(*c)
	}
	return res
}

// extract runs the oracle under the per-candidate time budget.
func (p *Pipeline) extract(ctx context.Context, l feed.Listing) (model.RawExtraction, error) {
	if secs := p.cfg.Pipeline.CandidateTimeoutSecs; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	start := time.Now()
	raw, err := p.extractor.Extract(ctx, extract.Input{Text: l.Text, Platform: l.Platform, Keyword: l.Keyword})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return raw, eris.Wrapf(err, "pipeline: extraction exceeded %ds budget", p.cfg.Pipeline.CandidateTimeoutSecs)
		}
		return raw, err
	}
	p.metrics.ObserveExtract(time.Since(start), raw.Fallback)
	return raw, nil
}

// skipVendor consults the outreach history. Lookup errors do not skip.
func (p *Pipeline) skipVendor(ctx context.Context, vendor string) (bool, string) {
	ok, err := p.learner.ShouldRetry(ctx, vendor)
	if err != nil {
		zap.L().Warn("pipeline: outreach history unavailable", zap.String("vendor", vendor), zap.Error(err))
		return false, ""
	}
	if !ok {
		return true, "outreach history: vendor not worth retrying"
	}
	return false, ""
}

func (p *Pipeline) trackRejection(vr model.ValidationResult) {
	p.tracker.RecordExtraction(false, 0)
	for _, l := range vr.Layers {
		if l.Layer == model.LayerGrounding && !l.Passed {
			p.tracker.RecordHallucination(SeverityCritical)
		}
	}
}

func (p *Pipeline) trackAdmitted(c *model.Candidate) {
	p.tracker.RecordExtraction(true, c.Quality.Confidence)
	for _, issue := range c.Quality.Issues {
		switch {
		case strings.HasSuffix(issue, " is null"):
			// absent, not invented
		case strings.HasPrefix(issue, quality.IssueEmail),
			strings.HasPrefix(issue, quality.IssueProductURL),
			strings.HasPrefix(issue, quality.IssueVendorURL):
			p.tracker.RecordHallucination(SeverityMajor)
		case strings.HasPrefix(issue, quality.IssueUniqueness):
		default:
			p.tracker.RecordHallucination(SeverityMinor)
		}
	}
}
