package scorer

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/oem-scout/internal/config"
	"github.com/sells-group/oem-scout/internal/model"
	"github.com/sells-group/oem-scout/internal/validate"
)

// ErrNotAdmitted is returned when scoring is attempted on a candidate that
// did not pass validation.
var ErrNotAdmitted = eris.New("scorer: candidate not admitted")

// Breakdown explains a score.
type Breakdown struct {
	Score     int      `json:"score"`
	Points    int      `json:"points"`
	MaxPoints int      `json:"max_points"`
	Matched   []string `json:"matched,omitempty"`
	Partial   []string `json:"partial,omitempty"`
	Penalties []string `json:"penalties,omitempty"`
	Learned   int      `json:"learned"`
}

// Scorer applies the weighted rubric. It holds no mutable state.
type Scorer struct {
	cfg        config.ScoringConfig
	req        config.RequirementsConfig
	max        int
	mountVocab *validate.PhraseMatcher
}

// New validates cfg and returns a Scorer.
func New(cfg config.ScoringConfig, req config.RequirementsConfig) (*Scorer, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Scorer{
		cfg:        cfg,
		req:        req,
		max:        WeightSum(cfg),
		mountVocab: validate.NewPhraseMatcher([]string{"wall", "mount", "signage"}),
	}, nil
}

// Score rates an admitted candidate. learned is the feedback adjustment in
// rubric points; it is clamped to the configured cap.
func (s *Scorer) Score(a validate.Admitted, learned int) (Breakdown, error) {
	if !a.OK() {
		return Breakdown{}, ErrNotAdmitted
	}
	return s.compute(a.Candidate(), learned), nil
}

func (s *Scorer) compute(c *model.Candidate, learned int) Breakdown {
	b := Breakdown{MaxPoints: s.max}
	award := func(name string) {
		b.Points += s.cfg.Weights[name]
		b.Matched = append(b.Matched, name)
	}

	if c.OS != nil && s.req.TargetOS != "" && strings.Contains(strings.ToLower(*c.OS), strings.ToLower(s.req.TargetOS)) {
		award(CriterionAndroidOS)
	}
	if isTrue(c.WallMount) {
		award(CriterionWallMount)
	}
	if c.HasBattery != nil && !*c.HasBattery {
		award(CriterionNoBattery)
	}
	if c.ScreenSize != nil && s.req.TargetScreen != "" && strings.Contains(*c.ScreenSize, s.req.TargetScreen) {
		award(CriterionCorrectSize)
	}
	if isTrue(c.Touchscreen) {
		award(CriterionTouchscreen)
	}
	if c.Price != nil {
		p := *c.Price
		switch {
		case p >= s.req.TargetPriceMin && p <= s.req.TargetPriceMax:
			award(CriterionPriceInRange)
		case p >= s.req.TargetPriceMin/2 && p <= 2*s.req.TargetPriceMax:
			b.Points += s.cfg.Weights[CriterionPriceInRange] / 2
			b.Partial = append(b.Partial, CriterionPriceInRange)
		}
	}
	if c.MOQ != nil && *c.MOQ <= s.req.MOQMax {
		award(CriterionMOQAcceptable)
	}
	if isTrue(c.Customizable) {
		award(CriterionCustomizable)
	}
	if isTrue(c.IPSPanel) {
		award(CriterionIPSPanel)
	}

	total := b.Points
	if isTrue(c.HasBattery) {
		total -= s.cfg.BatteryPenalty
		b.Penalties = append(b.Penalties, "battery")
	}
	if validate.IsBareTablet(c, s.mountVocab) {
		total -= s.cfg.TabletPenalty
		b.Penalties = append(b.Penalties, "tablet")
	}
	total = max(total, 0)

	b.Learned = min(max(learned, -s.cfg.LearnedCap), s.cfg.LearnedCap)
	total = max(total+b.Learned, 0)

	if s.max > 0 {
		b.Score = min(int(math.Round(100*float64(total)/float64(s.max))), 100)
	}
	return b
}

func isTrue(b *bool) bool { return b != nil && *b }
