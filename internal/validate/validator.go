// Package validate is the multi-layer fact-checking gate between the
// extraction oracle and scoring.
package validate

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/oem-scout/internal/config"
	"github.com/sells-group/oem-scout/internal/model"
	"github.com/sells-group/oem-scout/internal/quality"
)

// mountVocabulary marks a tablet-shaped product as installed hardware.
var mountVocabulary = []string{"wall", "mount", "signage"}

// Admitted is a candidate that passed every validation layer. Only a
// Validator can produce a non-empty value.
type Admitted struct {
	c *model.Candidate
}

// Candidate returns the admitted record, or nil for the zero value.
func (a Admitted) Candidate() *model.Candidate { return a.c }

// OK reports whether a holds an admitted candidate.
func (a Admitted) OK() bool { return a.c != nil }

// Validator runs the format, grounding, constraint, consistency and
// cross-field layers in order. Format failure stops evaluation; every other
// layer always runs so the audit trail is complete.
type Validator struct {
	cfg        config.ValidationConfig
	req        config.RequirementsConfig
	schema     Schema
	redFlags   *PhraseMatcher
	mountVocab *PhraseMatcher
	audit      *AuditLog
	now        func() time.Time
}

// New returns a Validator with its own audit log.
func New(cfg config.ValidationConfig, req config.RequirementsConfig) *Validator {
	return &Validator{
		cfg:        cfg,
		req:        req,
		schema:     CandidateSchema,
		redFlags:   NewPhraseMatcher(req.RedFlags),
		mountVocab: NewPhraseMatcher(mountVocabulary),
		audit:      NewAuditLog(cfg.AuditSize),
		now:        time.Now,
	}
}

// Audit returns the validator's audit log.
func (v *Validator) Audit() *AuditLog { return v.audit }

// MountVocabulary returns the matcher for wall/mount/signage language.
func (v *Validator) MountVocabulary() *PhraseMatcher { return v.mountVocab }

// Validate checks raw against the schema, decodes it, sanitizes contact
// fields and runs the remaining layers against history. The returned
// Admitted is non-empty only when every layer passed.
func (v *Validator) Validate(raw model.RawExtraction, history []model.Candidate) (Admitted, model.ValidationResult) {
	log := zap.L().With(zap.String("phase", "validate"))

	format := v.schema.checkFormat(raw.Fields)
	if !format.Passed {
		result := model.ValidationResult{Passed: false, Layers: []model.LayerResult{format}}
		v.record(nameOf(raw.Fields), result)
		log.Info("validate: format rejected", zap.String("reason", format.Reason))
		return Admitted{}, result
	}

	c := model.CandidateFromFields(raw.Fields)
	c.RawText = raw.Source
	c.Keyword = raw.Keyword
	c.Fallback = raw.Fallback
	if c.Platform == "" {
		c.Platform = raw.Platform
	}
	quality.Sanitize(c, history)

	layers := []model.LayerResult{
		format,
		v.checkGrounding(c),
		v.checkConstraints(c),
		v.checkConsistency(c, history),
		v.checkCrossField(c),
	}
	result := model.ValidationResult{Passed: true, Layers: layers}
	for _, l := range layers {
		if !l.Passed {
			result.Passed = false
			log.Info("validate: layer rejected",
				zap.String("vendor", c.VendorName),
				zap.String("layer", l.Layer),
				zap.String("reason", l.Reason),
				zap.Float64("confidence", l.Confidence),
			)
		}
	}
	v.record(c.VendorName, result)

	if !result.Passed {
		return Admitted{}, result
	}
	return Admitted{c: c}, result
}

func (v *Validator) record(vendor string, result model.ValidationResult) {
	v.audit.Add(model.AuditEntry{
		ID:         uuid.NewString(),
		VendorName: vendor,
		Result:     result,
		At:         v.now().UTC(),
	})
}

func nameOf(fields map[string]any) string {
	s, _ := fields[model.FieldVendorName].(string)
	return s
}
