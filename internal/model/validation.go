package model

import "time"

// Validation layer names, in evaluation order.
const (
	LayerFormat      = "format"
	LayerGrounding   = "factual_grounding"
	LayerConstraints = "constraints"
	LayerConsistency = "consistency"
	LayerCrossField  = "cross_field"
)

// LayerResult is the outcome of one validation layer. A layer that fails
// with zero confidence never claims otherwise; a passing layer always has
// confidence above zero.
type LayerResult struct {
	Layer      string  `json:"layer"`
	Passed     bool    `json:"passed"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// ValidationResult combines every layer that ran for one candidate.
type ValidationResult struct {
	Passed bool          `json:"passed"`
	Layers []LayerResult `json:"layers"`
}

// Failed returns the first failing layer, or nil when all passed.
func (r ValidationResult) Failed() *LayerResult {
	for i := range r.Layers {
		if !r.Layers[i].Passed {
			return &r.Layers[i]
		}
	}
	return nil
}

// AuditEntry is one retained validation run.
type AuditEntry struct {
	ID         string           `json:"id"`
	VendorName string           `json:"vendor_name"`
	Result     ValidationResult `json:"result"`
	At         time.Time        `json:"at"`
}
