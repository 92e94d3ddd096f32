package validate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/sells-group/oem-scout/internal/model"
)

// Per-field grounding scores.
const (
	scoreVerbatim = 1.0
	scoreFuzzy    = 0.7

	// fuzzyMinLen is the shortest cleaned value eligible for fuzzy matching.
	fuzzyMinLen = 5
	// fuzzyWindow is the fraction of the cleaned value that must appear
	// contiguously in the cleaned source.
	fuzzyWindow = 0.8

	noCriticalConfidence   = 0.8
	noHistoryConfidence    = 0.8
	consistentConfidence   = 0.9
	priceOutlierConfidence = 0.3
)

// criticalValues returns the quoted fields that must be traceable to the
// source, skipping absent ones. Descriptive and inferred attributes are not
// checked here.
func criticalValues(c *model.Candidate) map[string]string {
	out := map[string]string{}
	if name := strings.TrimSpace(c.VendorName); name != "" && !strings.EqualFold(name, "unknown") {
		out[model.FieldVendorName] = name
	}
	if c.Price != nil {
		out[model.FieldPrice] = strconv.FormatFloat(*c.Price, 'f', -1, 64)
	}
	return out
}

func (v *Validator) checkGrounding(c *model.Candidate) model.LayerResult {
	values := criticalValues(c)
	if len(values) == 0 {
		return model.LayerResult{Layer: model.LayerGrounding, Passed: true, Reason: "no critical fields to check", Confidence: noCriticalConfidence}
	}

	source := normalizeText(c.RawText)
	cleanSource := alnum(source)

	var total float64
	var failed []string
	for _, field := range []string{model.FieldVendorName, model.FieldPrice} {
		val, ok := values[field]
		if !ok {
			continue
		}
		score := groundScore(normalizeText(val), source, cleanSource)
		if score == 0 {
			failed = append(failed, fmt.Sprintf("%s %q not found in source", field, val))
		}
		total += score
	}
	confidence := total / float64(len(values))

	if confidence < v.cfg.GroundingThreshold || confidence == 0 {
		return model.LayerResult{
			Layer:      model.LayerGrounding,
			Passed:     false,
			Reason:     "ungrounded values: " + strings.Join(failed, "; "),
			Confidence: confidence,
		}
	}
	reason := fmt.Sprintf("%d/%d critical fields grounded", len(values)-len(failed), len(values))
	if len(failed) > 0 {
		reason += " (" + strings.Join(failed, "; ") + ")"
	}
	return model.LayerResult{Layer: model.LayerGrounding, Passed: true, Reason: reason, Confidence: confidence}
}

// groundScore scores one normalized value against the normalized source:
// verbatim containment, then a contiguous run of 80% of the characters of
// the alphanumeric form.
func groundScore(value, source, cleanSource string) float64 {
	if value == "" {
		return 0
	}
	if strings.Contains(source, value) {
		return scoreVerbatim
	}
	clean := []rune(alnum(value))
	if len(clean) <= fuzzyMinLen {
		return 0
	}
	window := int(fuzzyWindow * float64(len(clean)))
	for i := 0; i+window <= len(clean); i++ {
		if strings.Contains(cleanSource, string(clean[i:i+window])) {
			return scoreFuzzy
		}
	}
	return 0
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (v *Validator) checkConstraints(c *model.Candidate) model.LayerResult {
	var violations []string
	req := v.req

	if !v.cfg.Relaxed {
		if c.HasBattery != nil && *c.HasBattery {
			violations = append(violations, "has battery (wall power only)")
		}
		if c.WallMount != nil && !*c.WallMount {
			violations = append(violations, "not wall mounted")
		}
		if IsBareTablet(c, v.mountVocab) {
			violations = append(violations, "handheld tablet without wall/mount/signage use")
		}
	}
	if c.MOQ != nil && req.MOQMax > 0 && *c.MOQ > req.MOQMax {
		violations = append(violations, fmt.Sprintf("MOQ %d exceeds %d", *c.MOQ, req.MOQMax))
	}
	if c.Price != nil && req.TargetPriceMax > 0 {
		ceiling := v.cfg.PriceTolerance * req.TargetPriceMax
		if *c.Price > ceiling {
			violations = append(violations, fmt.Sprintf("price $%g exceeds $%g", *c.Price, ceiling))
		}
	}
	if flags := v.redFlags.Find(c.Description); len(flags) > 0 {
		violations = append(violations, "red flag: "+strings.Join(flags, ", "))
	}

	if len(violations) > 0 {
		return model.LayerResult{Layer: model.LayerConstraints, Passed: false, Reason: strings.Join(violations, "; "), Confidence: 0}
	}
	return model.LayerResult{Layer: model.LayerConstraints, Passed: true, Reason: "all product constraints satisfied", Confidence: 1.0}
}

// IsBareTablet reports whether c describes a tablet with no wall, mount or
// signage language in its product type or description.
func IsBareTablet(c *model.Candidate, mountVocab *PhraseMatcher) bool {
	pt := model.Deref(c.ProductType)
	if !strings.Contains(normalizeText(pt), "tablet") {
		return false
	}
	return !mountVocab.Any(pt + " " + c.Description)
}

func (v *Validator) checkConsistency(c *model.Candidate, history []model.Candidate) model.LayerResult {
	if len(history) == 0 {
		return model.LayerResult{Layer: model.LayerConsistency, Passed: true, Reason: "no history to compare", Confidence: noHistoryConfidence}
	}

	name := tokenSet(c.VendorName)
	for i := range history {
		sim := jaccard(name, tokenSet(history[i].VendorName))
		if sim >= v.cfg.DuplicateSimilarity {
			return model.LayerResult{
				Layer:      model.LayerConsistency,
				Passed:     false,
				Reason:     fmt.Sprintf("near-duplicate of %q (similarity %.2f)", history[i].VendorName, sim),
				Confidence: 0,
			}
		}
	}

	if c.Price != nil {
		var sum float64
		var n int
		for i := range history {
			if p := history[i].Price; p != nil && *p > 0 {
				sum += *p
				n++
			}
		}
		if n >= v.cfg.MinHistoryPrices && n > 0 {
			avg := sum / float64(n)
			if *c.Price > v.cfg.OutlierFactor*avg || *c.Price < avg/v.cfg.OutlierFactor {
				return model.LayerResult{
					Layer:      model.LayerConsistency,
					Passed:     false,
					Reason:     fmt.Sprintf("price $%g is an outlier against mean $%.2f of %d vendors", *c.Price, avg, n),
					Confidence: priceOutlierConfidence,
				}
			}
		}
	}
	return model.LayerResult{Layer: model.LayerConsistency, Passed: true, Reason: "consistent with history", Confidence: consistentConfidence}
}

// tokenSet lowercases s and splits it on non-alphanumeric runes.
func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.FieldsFunc(normalizeText(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[tok] = true
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Contradictions checked in strict cross-field mode.
var (
	portableWords    = []string{"handheld", "portable"}
	batteryWords     = []string{"built-in battery", "rechargeable battery", "battery powered"}
	touchscreenWords = []string{"touch screen", "touchscreen", "capacitive touch"}
)

func (v *Validator) checkCrossField(c *model.Candidate) model.LayerResult {
	if !v.cfg.StrictCrossField {
		return model.LayerResult{Layer: model.LayerCrossField, Passed: true, Reason: "lenient mode", Confidence: 1.0}
	}

	desc := normalizeText(c.Description)
	pt := normalizeText(model.Deref(c.ProductType))
	var problems []string
	if c.WallMount != nil && *c.WallMount && containsAny(pt, portableWords) {
		problems = append(problems, "wall mounted but product type is portable")
	}
	if c.HasBattery != nil && !*c.HasBattery && containsAny(desc, batteryWords) {
		problems = append(problems, "no battery claimed but description mentions one")
	}
	if c.Touchscreen != nil && !*c.Touchscreen && containsAny(desc, touchscreenWords) {
		problems = append(problems, "no touchscreen claimed but description mentions touch")
	}
	if len(problems) > 0 {
		return model.LayerResult{Layer: model.LayerCrossField, Passed: false, Reason: strings.Join(problems, "; "), Confidence: 0}
	}
	return model.LayerResult{Layer: model.LayerCrossField, Passed: true, Reason: "no contradictions", Confidence: 1.0}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
