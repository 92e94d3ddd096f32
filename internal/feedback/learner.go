// Package feedback records human judgments on candidates and turns them into
// frequency-counted feature patterns that nudge later scores.
package feedback

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/oem-scout/internal/config"
	"github.com/sells-group/oem-scout/internal/model"
)

// Store is the persistence the learner needs.
type Store interface {
	GetCandidate(ctx context.Context, id string) (*model.Candidate, error)
	SetFeedback(ctx context.Context, id string, s model.Sentiment, reason string, at time.Time) error
	// UpsertPattern increments the (type, value, sentiment) row or inserts it
	// with count 1, atomically.
	UpsertPattern(ctx context.Context, featureType, featureValue string, s model.Sentiment, at time.Time) error
	// ListPatterns returns patterns with count >= minSupport, strongest first.
	ListPatterns(ctx context.Context, minSupport int) ([]model.Pattern, error)
	// GetInteraction returns nil, nil when the vendor has no history.
	GetInteraction(ctx context.Context, vendorName string) (*model.Interaction, error)
	FeedbackStats(ctx context.Context) (model.FeedbackStats, error)
}

// Learner implements the feedback loop.
type Learner struct {
	cfg   config.FeedbackConfig
	store Store
	now   func() time.Time
}

// New returns a Learner backed by store.
func New(cfg config.FeedbackConfig, store Store) *Learner {
	return &Learner{cfg: cfg, store: store, now: time.Now}
}

// RecordFeedback stores a judgment on candidate id and, for positive or
// negative sentiment, learns every feature of the candidate plus the
// keywords found in reason. It returns the number of patterns touched.
func (l *Learner) RecordFeedback(ctx context.Context, id string, s model.Sentiment, reason string) (int, error) {
	log := zap.L().With(zap.String("phase", "feedback"), zap.String("candidate_id", id))

	c, err := l.store.GetCandidate(ctx, id)
	if err != nil {
		return 0, eris.Wrapf(err, "feedback: load candidate %s", id)
	}

	at := l.now().UTC()
	if err := l.store.SetFeedback(ctx, id, s, reason, at); err != nil {
		return 0, eris.Wrapf(err, "feedback: store judgment for %s", id)
	}
	if !s.Learnable() {
		log.Info("neutral feedback recorded", zap.String("vendor", c.VendorName))
		return 0, nil
	}

	features := Features(c)
	for _, kw := range Keywords(reason) {
		features = append(features, Feature{Type: FeatureReasonKeyword, Value: kw})
	}
	for _, f := range features {
		if err := l.store.UpsertPattern(ctx, f.Type, f.Value, s, at); err != nil {
			return 0, eris.Wrapf(err, "feedback: learn %s=%s", f.Type, f.Value)
		}
	}

	log.Info("feedback learned",
		zap.String("vendor", c.VendorName),
		zap.String("sentiment", string(s)),
		zap.Int("patterns", len(features)),
	)
	return len(features), nil
}

// LearnedPatterns returns patterns meeting the support threshold, at most
// pattern_limit per sentiment, strongest first.
func (l *Learner) LearnedPatterns(ctx context.Context) ([]model.Pattern, error) {
	all, err := l.store.ListPatterns(ctx, max(l.cfg.MinSupport, 1))
	if err != nil {
		return nil, eris.Wrap(err, "feedback: list patterns")
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Count > all[j].Count })

	perSentiment := make(map[model.Sentiment]int)
	out := make([]model.Pattern, 0, len(all))
	for _, p := range all {
		if !p.Sentiment.Learnable() {
			continue
		}
		if l.cfg.PatternLimit > 0 && perSentiment[p.Sentiment] >= l.cfg.PatternLimit {
			continue
		}
		perSentiment[p.Sentiment]++
		out = append(out, p)
	}
	return out, nil
}

// ScoringBoost returns the learned adjustment in rubric points for c.
func (l *Learner) ScoringBoost(ctx context.Context, c *model.Candidate) (int, error) {
	patterns, err := l.LearnedPatterns(ctx)
	if err != nil {
		return 0, err
	}
	return Boost(l.cfg, patterns, c), nil
}

// Boost sums the contribution of every pattern matching a feature of c.
// Positive patterns add min(weight*count, cap), negative ones subtract it.
// The total is clamped to ±30.
func Boost(cfg config.FeedbackConfig, patterns []model.Pattern, c *model.Candidate) int {
	features := Features(c)
	total := 0
	for _, p := range patterns {
		if !matches(p, features) {
			continue
		}
		w := min(cfg.WeightPerObservation*p.Count, cfg.FeatureCap)
		switch p.Sentiment {
		case model.SentimentPositive:
			total += w
		case model.SentimentNegative:
			total -= w
		}
	}
	return min(max(total, -boostCap), boostCap)
}

const boostCap = 30

func matches(p model.Pattern, features []Feature) bool {
	pv := strings.ToLower(p.FeatureValue)
	if pv == "" {
		return false
	}
	for _, f := range features {
		if !strings.EqualFold(f.Type, p.FeatureType) {
			continue
		}
		if f.Value == pv || strings.Contains(f.Value, pv) || strings.Contains(pv, f.Value) {
			return true
		}
	}
	return false
}

var rejectionWords = regexp.MustCompile(`(?i)\b(no|not interested|cannot|unable)\b`)

// ShouldRetry reports whether vendorName may be contacted again.
func (l *Learner) ShouldRetry(ctx context.Context, vendorName string) (bool, error) {
	in, err := l.store.GetInteraction(ctx, vendorName)
	if err != nil {
		return false, eris.Wrapf(err, "feedback: interaction history for %s", vendorName)
	}
	return RetryAllowed(l.cfg, in, l.now()), nil
}

// RetryAllowed applies the outreach rules to one interaction history. A nil
// history always allows contact.
func RetryAllowed(cfg config.FeedbackConfig, in *model.Interaction, now time.Time) bool {
	if in == nil {
		return true
	}
	if cfg.MaxAttempts > 0 && in.EmailsSent >= cfg.MaxAttempts {
		return false
	}
	if in.LastEmailAt != nil && now.Sub(*in.LastEmailAt) < time.Duration(cfg.CooldownDays)*24*time.Hour {
		return false
	}
	if in.LastScore != nil && *in.LastScore < cfg.MinScore {
		return false
	}
	if rejectionWords.MatchString(in.LastResponse) {
		return false
	}
	return true
}

// RequestFeedback renders a candidate summary for a human reviewer.
func (l *Learner) RequestFeedback(ctx context.Context, id string) (string, error) {
	c, err := l.store.GetCandidate(ctx, id)
	if err != nil {
		return "", eris.Wrapf(err, "feedback: load candidate %s", id)
	}
	return FormatRequest(c), nil
}

// FormatRequest renders c for review.
func FormatRequest(c *model.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Vendor: %s\n", c.VendorName)
	fmt.Fprintf(&b, "Candidate: %s\n", c.ID)
	fmt.Fprintf(&b, "Product: %s\n", orDefault(model.Deref(c.ProductType), "N/A"))
	fmt.Fprintf(&b, "Score: %d/100\n\n", c.Score)

	b.WriteString("Specifications:\n")
	fmt.Fprintf(&b, "  Screen: %s\n", orDefault(model.Deref(c.ScreenSize), "Unknown"))
	fmt.Fprintf(&b, "  OS: %s\n", orDefault(model.Deref(c.OS), "Unknown"))
	fmt.Fprintf(&b, "  Wall mount: %s\n", tri(c.WallMount, "yes", "no"))
	fmt.Fprintf(&b, "  Battery: %s\n\n", tri(c.HasBattery, "yes (unwanted)", "no battery"))

	b.WriteString("Pricing:\n")
	if c.Price != nil {
		fmt.Fprintf(&b, "  Price: $%.2f/unit\n", *c.Price)
	} else {
		b.WriteString("  Price: contact vendor\n")
	}
	if c.MOQ != nil {
		fmt.Fprintf(&b, "  MOQ: %d\n\n", *c.MOQ)
	} else {
		b.WriteString("  MOQ: Unknown\n\n")
	}

	b.WriteString("Contact:\n")
	fmt.Fprintf(&b, "  Email: %s\n", orDefault(model.Deref(c.Email), "not found"))
	fmt.Fprintf(&b, "  Product: %s\n\n", orDefault(model.Deref(c.ProductURL), "not found"))

	desc := c.Description
	if r := []rune(desc); len(r) > 200 {
		desc = string(r[:200]) + "..."
	}
	fmt.Fprintf(&b, "Description: %s\n\n", orDefault(desc, "No description"))
	b.WriteString("Reply \"relevant - reason\", \"not relevant - reason\" or \"skip\".\n")
	return b.String()
}

// Summary returns judgment totals and the learned pattern count.
func (l *Learner) Summary(ctx context.Context) (model.FeedbackStats, error) {
	st, err := l.store.FeedbackStats(ctx)
	if err != nil {
		return model.FeedbackStats{}, eris.Wrap(err, "feedback: stats")
	}
	return st, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func tri(b *bool, yes, no string) string {
	switch {
	case b == nil:
		return "unknown"
	case *b:
		return yes
	default:
		return no
	}
}
