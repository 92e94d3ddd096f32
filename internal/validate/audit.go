package validate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sells-group/oem-scout/internal/model"
)

// AuditLog keeps the most recent validation runs in a fixed-size ring.
type AuditLog struct {
	mu      sync.Mutex
	entries []model.AuditEntry
	next    int
	full    bool
}

// NewAuditLog returns a log retaining at most size entries.
func NewAuditLog(size int) *AuditLog {
	if size < 1 {
		size = 1
	}
	return &AuditLog{entries: make([]model.AuditEntry, size)}
}

// Add appends e, evicting the oldest entry when full.
func (l *AuditLog) Add(e model.AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
}

// Len returns the number of retained entries.
func (l *AuditLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}

// Entries returns the retained entries, oldest first.
func (l *AuditLog) Entries() []model.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		return append([]model.AuditEntry(nil), l.entries[:l.next]...)
	}
	out := make([]model.AuditEntry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

// Report renders the last n entries with per-layer verdicts.
func (l *AuditLog) Report(n int) string {
	entries := l.Entries()
	if len(entries) == 0 {
		return "No validations recorded.\n"
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Validation report (%d most recent)\n", len(entries))
	for _, e := range entries {
		verdict := "PASSED"
		if !e.Result.Passed {
			verdict = "REJECTED"
		}
		fmt.Fprintf(&b, "\n%s  %s  %s\n", e.At.Format(time.RFC3339), displayName(e.VendorName), verdict)
		for _, layer := range e.Result.Layers {
			mark := "✓"
			if !layer.Passed {
				mark = "✗"
			}
			fmt.Fprintf(&b, "  %s %s: %s (confidence %.2f)\n", mark, layer.Layer, layer.Reason, layer.Confidence)
		}
	}
	return b.String()
}

func displayName(s string) string {
	if s == "" {
		return "(unnamed)"
	}
	return s
}
