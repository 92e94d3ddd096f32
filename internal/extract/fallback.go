package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/oem-scout/internal/model"
)

var (
	companyLabel = regexp.MustCompile(`(?im)^\s*(?:company|supplier|vendor|manufacturer)\s*(?:name)?\s*[:：]\s*(.+?)\s*$`)
	legalName    = regexp.MustCompile(`(?m)^\s*([A-Z][\w&'.-]*(?:[ ,]+[\w&'.()-]+)*?[ ,]+(?:Co\.?,?\s*Ltd\.?|Ltd\.?|Limited|Inc\.?|Corp\.?|Corporation|LLC|GmbH))`)
	priceDollar  = regexp.MustCompile(`(?i)(?:US\s*)?\$\s*(\d+(?:,\d{3})*(?:\.\d+)?)`)
	moqLabel     = regexp.MustCompile(`(?i)(?:MOQ|min(?:imum)?\.?\s*order(?:\s*quantity)?)\s*[:：]?\s*(\d[\d,]*)`)
	osName       = regexp.MustCompile(`(?i)\b(android\s*\d+(?:\.\d+)?|android|windows\s*\d*|linux|ubuntu)\b`)
	screenInches = regexp.MustCompile(`(?i)(\d{1,2}(?:\.\d)?)\s*(?:"|''|”|-?\s*inch(?:es)?\b|in\b)`)
	noBattery    = regexp.MustCompile(`(?i)\b(?:no|without|non)[\s-]+battery\b|\bbattery[\s-]*free\b`)
	battery      = regexp.MustCompile(`(?i)\bbattery\b`)
	wallMount    = regexp.MustCompile(`(?i)\bwall[\s-]*mount(?:ed|ing)?\b|\bvesa\b`)
	touch        = regexp.MustCompile(`(?i)\btouch\s*(?:screen|panel|display)?\b`)
	ips          = regexp.MustCompile(`\bIPS\b`)
	customizable = regexp.MustCompile(`(?i)\b(?:OEM|ODM|customi[sz](?:able|ation|ed))\b`)
	camera       = regexp.MustCompile(`(?i)\bfront(?:[\s-]+facing)?\s+camera\b`)
)

// productTypes are matched in order; the first hit names the product type.
var productTypes = []struct {
	pattern *regexp.Regexp
	name    string
}{
	{regexp.MustCompile(`(?i)\bdigital\s+signage\b|\bsignage\b`), "digital signage"},
	{regexp.MustCompile(`(?i)\badvertising\s+(?:player|display|screen)\b`), "advertising display"},
	{regexp.MustCompile(`(?i)\bvideo\s+player\b`), "video player"},
	{regexp.MustCompile(`(?i)\btablet\b`), "tablet"},
	{regexp.MustCompile(`(?i)\bmonitor\b`), "monitor"},
	{regexp.MustCompile(`(?i)\bdisplay\b`), "display"},
}

const descriptionRunes = 200

// Fallback extracts what simple patterns can find in text. It fills every
// schema field so the result reaches the validator; fields with no match are
// nil. Contact fields are left nil for deterministic recovery to fill.
func Fallback(text, platform string) map[string]any {
	fields := map[string]any{
		model.FieldVendorName:   nil,
		model.FieldPlatform:     nil,
		model.FieldProductType:  nil,
		model.FieldOS:           nil,
		model.FieldScreenSize:   nil,
		model.FieldWallMount:    nil,
		model.FieldHasBattery:   nil,
		model.FieldTouchscreen:  nil,
		model.FieldCameraFront:  nil,
		model.FieldCustomizable: nil,
		model.FieldIPSPanel:     nil,
		model.FieldMOQ:          nil,
		model.FieldPrice:        nil,
		model.FieldEmail:        nil,
		model.FieldProductURL:   nil,
		model.FieldVendorURL:    nil,
		model.FieldDescription:  nil,
	}
	if platform != "" {
		fields[model.FieldPlatform] = strings.ToLower(platform)
	}

	if name := vendorName(text); name != "" {
		fields[model.FieldVendorName] = name
	}
	if m := priceDollar.FindStringSubmatch(text); m != nil {
		if f, ok := model.ParseNumber(m[1]); ok {
			fields[model.FieldPrice] = f
		}
	}
	if m := moqLabel.FindStringSubmatch(text); m != nil {
		if f, ok := model.ParseNumber(m[1]); ok {
			fields[model.FieldMOQ] = f
		}
	}
	if m := osName.FindStringSubmatch(text); m != nil {
		fields[model.FieldOS] = strings.Join(strings.Fields(m[1]), " ")
	}
	if m := screenInches.FindStringSubmatch(text); m != nil {
		fields[model.FieldScreenSize] = m[1] + " inch"
	}
	for _, pt := range productTypes {
		if pt.pattern.MatchString(text) {
			fields[model.FieldProductType] = pt.name
			break
		}
	}

	switch {
	case noBattery.MatchString(text):
		fields[model.FieldHasBattery] = false
	case battery.MatchString(text):
		fields[model.FieldHasBattery] = true
	}
	setIfMatch(fields, model.FieldWallMount, wallMount, text)
	setIfMatch(fields, model.FieldTouchscreen, touch, text)
	setIfMatch(fields, model.FieldIPSPanel, ips, text)
	setIfMatch(fields, model.FieldCustomizable, customizable, text)
	setIfMatch(fields, model.FieldCameraFront, camera, text)

	if desc := Truncate(strings.Join(strings.Fields(text), " "), descriptionRunes); desc != "" {
		fields[model.FieldDescription] = desc
	}
	return fields
}

// setIfMatch records a positive mention only; absence stays unknown.
func setIfMatch(fields map[string]any, key string, re *regexp.Regexp, text string) {
	if re.MatchString(text) {
		fields[key] = true
	}
}

func vendorName(text string) string {
	if m := companyLabel.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := legalName.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
