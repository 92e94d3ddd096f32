// Package scorer turns an admitted candidate into a 0-100 suitability score
// with a transparent weighted rubric.
package scorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/oem-scout/internal/config"
)

// Rubric criteria. Every criterion must carry a weight.
const (
	CriterionAndroidOS     = "android_os"
	CriterionWallMount     = "wall_mount"
	CriterionNoBattery     = "no_battery"
	CriterionCorrectSize   = "correct_size"
	CriterionTouchscreen   = "touchscreen"
	CriterionPriceInRange  = "price_in_range"
	CriterionMOQAcceptable = "moq_acceptable"
	CriterionCustomizable  = "customizable"
	CriterionIPSPanel      = "ips_panel"
)

// Criteria lists every scored criterion in evaluation order.
var Criteria = []string{
	CriterionAndroidOS,
	CriterionWallMount,
	CriterionNoBattery,
	CriterionCorrectSize,
	CriterionTouchscreen,
	CriterionPriceInRange,
	CriterionMOQAcceptable,
	CriterionCustomizable,
	CriterionIPSPanel,
}

// WeightSum returns the sum of the rubric weights.
func WeightSum(c config.ScoringConfig) int {
	sum := 0
	for _, name := range Criteria {
		sum += c.Weights[name]
	}
	return sum
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	for _, name := range Criteria {
		w, ok := c.Weights[name]
		if !ok {
			errs = append(errs, fmt.Sprintf("missing weight for %s", name))
			continue
		}
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", name))
		}
	}

	known := make(map[string]bool, len(Criteria))
	for _, name := range Criteria {
		known[name] = true
	}
	var unknown []string
	for name := range c.Weights {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs = append(errs, fmt.Sprintf("unknown criterion %s", name))
	}

	if WeightSum(c) <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}
	if c.BatteryPenalty < 0 || c.TabletPenalty < 0 {
		errs = append(errs, "penalties must be >= 0")
	}
	if c.LearnedCap < 0 {
		errs = append(errs, "learned_cap must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
