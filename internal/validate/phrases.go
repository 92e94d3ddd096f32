package validate

import (
	"strings"
	"sync"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// PhraseMatcher finds which of a fixed set of phrases occur in a text in a
// single pass. Matching is case-insensitive and width-insensitive.
type PhraseMatcher struct {
	mu      sync.Mutex // the automaton keeps per-call scratch state
	phrases []string
	matcher *ahocorasick.Matcher
}

// NewPhraseMatcher builds a matcher over phrases. Blank phrases are ignored.
func NewPhraseMatcher(phrases []string) *PhraseMatcher {
	pm := &PhraseMatcher{}
	seen := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		n := normalizeText(p)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		pm.phrases = append(pm.phrases, p)
	}
	if len(pm.phrases) > 0 {
		keys := make([]string, len(pm.phrases))
		for i, p := range pm.phrases {
			keys[i] = normalizeText(p)
		}
		pm.matcher = ahocorasick.NewStringMatcher(keys)
	}
	return pm
}

// Find returns the configured phrases present in text, in configuration order.
func (pm *PhraseMatcher) Find(text string) []string {
	if pm.matcher == nil || text == "" {
		return nil
	}
	normalized := []byte(normalizeText(text))

	pm.mu.Lock()
	hits := pm.matcher.Match(normalized)
	pm.mu.Unlock()

	found := make(map[int]bool, len(hits))
	for _, h := range hits {
		if h < len(pm.phrases) {
			found[h] = true
		}
	}
	var out []string
	for i, p := range pm.phrases {
		if found[i] {
			out = append(out, p)
		}
	}
	return out
}

// Any reports whether at least one phrase occurs in text.
func (pm *PhraseMatcher) Any(text string) bool {
	return len(pm.Find(text)) > 0
}

// normalizeText applies NFKC and full case folding and collapses runs of
// whitespace to one space.
func normalizeText(s string) string {
	folded := cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}
