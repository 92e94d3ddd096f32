package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/oem-scout/internal/model"
	"github.com/sells-group/oem-scout/internal/store"
)

// History is the set of previously accepted candidates used by the
// duplicate and price-outlier checks. Reads vastly outnumber appends.
type History struct {
	mu    sync.RWMutex
	items []model.Candidate
}

// NewHistory returns a History seeded with items.
func NewHistory(items []model.Candidate) *History {
	return &History{items: append([]model.Candidate(nil), items...)}
}

// LoadHistory seeds a History from the store's accepted candidates. limit
// bounds how many are loaded; 0 loads all.
func LoadHistory(ctx context.Context, st store.Store, limit int) (*History, error) {
	items, err := st.ListCandidates(ctx, store.CandidateFilter{Limit: limit})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load history")
	}
	return NewHistory(items), nil
}

// Snapshot returns a copy safe to read without holding the lock.
func (h *History) Snapshot() []model.Candidate {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]model.Candidate(nil), h.items...)
}

// Add appends an accepted candidate.
func (h *History) Add(c model.Candidate) {
	h.mu.Lock()
	h.items = append(h.items, c)
	h.mu.Unlock()
}

// Len returns the number of accepted candidates.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}
