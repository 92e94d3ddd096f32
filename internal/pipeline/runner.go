package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/oem-scout/internal/feed"
	"github.com/sells-group/oem-scout/internal/model"
	"github.com/sells-group/oem-scout/internal/store"
)

// Summary aggregates one batch run.
type Summary struct {
	RunID     string         `json:"run_id"`
	Processed int            `json:"processed"`
	ByStatus  map[Status]int `json:"by_status"`
	Results   []Result       `json:"results"`
	Points    int            `json:"points"`
	Grade     string         `json:"grade"`
	Duration  time.Duration  `json:"duration"`
}

// Saved returns the candidates persisted in this run, best score first.
func (s Summary) Saved() []*model.Candidate {
	var out []*model.Candidate
	for _, r := range s.Results {
		if r.Status == StatusSaved && !r.Duplicate {
			out = append(out, r.Candidate)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Runner feeds listings through a Pipeline with bounded concurrency and
// paced oracle calls.
type Runner struct {
	pipeline *Pipeline
	store    store.Store
	workers  int
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewRunner creates a Runner from the pipeline's configuration. A
// rate_per_minute of 0 disables pacing.
func NewRunner(p *Pipeline) *Runner {
	r := &Runner{
		pipeline: p,
		store:    p.store,
		workers:  max(p.cfg.Pipeline.Workers, 1),
		now:      time.Now,
	}
	if rpm := p.cfg.Pipeline.RatePerMinute; rpm > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	return r
}

// Run processes listings and persists the validation audit trail. Results
// keep the input order. ctx is checked between candidates: work already
// started finishes, nothing new starts, and the context error is returned
// with the partial summary.
func (r *Runner) Run(ctx context.Context, listings []feed.Listing) (Summary, error) {
	start := r.now()
	log := zap.L().With(zap.String("phase", "run"), zap.String("run_id", r.pipeline.runID))
	log.Info("run: starting", zap.Int("listings", len(listings)), zap.Int("workers", r.workers))

	results := make([]Result, len(listings))
	done := make([]bool, len(listings))

	// Candidates in flight run to completion under their own time budget.
	work := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(r.workers)

	var stopErr error
	for i, l := range listings {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				stopErr = err
				break
			}
		}
		g.Go(func() error {
			results[i] = r.pipeline.Process(work, l)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	s := Summary{
		RunID:    r.pipeline.runID,
		ByStatus: make(map[Status]int),
	}
	var audit []model.AuditEntry
	for i, res := range results {
		if !done[i] {
			continue
		}
		s.Processed++
		s.ByStatus[res.Status]++
		s.Results = append(s.Results, res)
		if res.Validated() {
			audit = append(audit, model.AuditEntry{
				ID:         uuid.NewString(),
				VendorName: res.Vendor,
				Result:     res.Validation,
				At:         r.now().UTC(),
			})
		}
	}

	if len(audit) > 0 {
		if err := r.store.SaveValidationLogs(work, audit); err != nil {
			log.Error("run: save validation logs", zap.Error(err))
		}
	}

	tracker := r.pipeline.Tracker()
	s.Points = tracker.Points()
	s.Grade = Grade(s.Points)
	s.Duration = r.now().Sub(start)

	fields := []zap.Field{zap.Int("processed", s.Processed), zap.Int("points", s.Points), zap.Duration("duration", s.Duration)}
	for status, n := range s.ByStatus {
		fields = append(fields, zap.Int(string(status), n))
	}
	log.Info("run: complete", fields...)

	if stopErr != nil {
		return s, eris.Wrap(stopErr, "run: stopped early")
	}
	return s, nil
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }
