// Package store persists candidates, validation logs, learned feedback
// patterns and outreach history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/oem-scout/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// CandidateFilter specifies criteria for listing candidates.
type CandidateFilter struct {
	VendorName string `json:"vendor_name,omitempty"`
	MinScore   int    `json:"min_score,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the discovery pipeline.
type Store interface {
	// Candidates. SaveCandidate reports false without error when a candidate
	// with the same (vendor name, product URL) already exists.
	SaveCandidate(ctx context.Context, c *model.Candidate) (bool, error)
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error)

	// Feedback
	SetFeedback(ctx context.Context, id string, s model.Sentiment, reason string, at time.Time) error
	UpsertPattern(ctx context.Context, featureType, featureValue string, s model.Sentiment, at time.Time) error
	ListPatterns(ctx context.Context, minSupport int) ([]model.Pattern, error)
	FeedbackStats(ctx context.Context) (model.FeedbackStats, error)

	// Outreach history
	RecordInteraction(ctx context.Context, vendorName string, score *int, response string, at time.Time) error
	GetInteraction(ctx context.Context, vendorName string) (*model.Interaction, error)

	// Validation audit
	SaveValidationLogs(ctx context.Context, entries []model.AuditEntry) error
	ListValidationLogs(ctx context.Context, limit int) ([]model.AuditEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// failedLayer names the first failing layer of r, or "".
func failedLayer(r model.ValidationResult) string {
	if f := r.Failed(); f != nil {
		return f.Layer
	}
	return ""
}
