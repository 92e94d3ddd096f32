package config

import (
	"errors"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalid marks a configuration that must not start.
var ErrInvalid = errors.New("config: invalid")

// Validate checks the settings a command depends on. mode is the command
// name; "run" and "serve" also require extraction credentials.
func (c *Config) Validate(mode string) error {
	var errs []string
	req := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	req(c.Store.DatabaseURL != "", "store.database_url is required")

	if mode == "run" || mode == "serve" {
		req(c.Anthropic.Key != "", "anthropic.key is required")
	}
	if mode == "serve" {
		req(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be between 1 and 65535")
	}

	p := c.Pipeline
	req(p.ExtractRetries >= 0, "pipeline.extract_retries must be >= 0")
	req(p.MinSaveScore >= 0 && p.MinSaveScore <= 100, "pipeline.min_save_score must be in [0, 100]")
	req(p.Workers >= 1, "pipeline.workers must be >= 1")
	req(p.MaxSourceChars > 0, "pipeline.max_source_chars must be > 0")

	v := c.Validation
	req(v.GroundingThreshold >= 0 && v.GroundingThreshold <= 1, "validation.grounding_threshold must be in [0, 1]")
	req(v.PriceTolerance >= 1, "validation.price_tolerance must be >= 1")
	req(v.DuplicateSimilarity > 0 && v.DuplicateSimilarity <= 1, "validation.duplicate_similarity must be in (0, 1]")
	req(v.OutlierFactor >= 1, "validation.outlier_factor must be >= 1")
	req(v.MinHistoryPrices >= 1, "validation.min_history_prices must be >= 1")
	req(v.AuditSize >= 1, "validation.audit_size must be >= 1")

	r := c.Requirements
	req(r.MOQMax > 0, "requirements.moq_max must be > 0")
	req(r.TargetPriceMin > 0, "requirements.target_price_min must be > 0")
	req(r.TargetPriceMin <= r.TargetPriceMax, "requirements.target_price_min must not exceed target_price_max")

	s := c.Scoring
	req(s.BatteryPenalty >= 0 && s.TabletPenalty >= 0, "scoring penalties must be >= 0")
	req(s.LearnedCap >= 0, "scoring.learned_cap must be >= 0")

	f := c.Feedback
	req(f.WeightPerObservation >= 0 && f.FeatureCap >= 0, "feedback weights must be >= 0")
	req(f.MinSupport >= 1, "feedback.min_support must be >= 1")

	if mode == "serve" {
		m := c.Monitoring
		req(m.RejectionRateThreshold >= 0 && m.RejectionRateThreshold <= 1, "monitoring.rejection_rate_threshold must be in [0, 1]")
		req(m.LookbackWindowHours >= 1, "monitoring.lookback_window_hours must be >= 1")
	}

	if len(errs) > 0 {
		return eris.Wrapf(ErrInvalid, "config: %s", strings.Join(errs, "; "))
	}
	return nil
}
