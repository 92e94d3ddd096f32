package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/oem-scout/internal/model"
	"github.com/sells-group/oem-scout/internal/resilience"
)

// ErrMalformed is returned when the oracle output is not a JSON object.
var ErrMalformed = eris.New("extract: malformed oracle output")

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// nullTokens are strings the model uses for "not stated".
var nullTokens = map[string]bool{
	"unknown":        true,
	"n/a":            true,
	"na":             true,
	"null":           true,
	"none":           true,
	"not mentioned":  true,
	"not specified":  true,
	"not available":  true,
	"not provided":   true,
	"not stated":     true,
	"not applicable": true,
}

var boolFields = map[string]bool{
	model.FieldWallMount:    true,
	model.FieldHasBattery:   true,
	model.FieldTouchscreen:  true,
	model.FieldCameraFront:  true,
	model.FieldCustomizable: true,
	model.FieldIPSPanel:     true,
}

// fieldAliases maps keys the model sometimes uses to canonical field names.
var fieldAliases = map[string]string{
	"url":      model.FieldProductURL,
	"email":    model.FieldEmail,
	"price":    model.FieldPrice,
	"company":  model.FieldVendorName,
	"website":  model.FieldVendorURL,
	"vendor":   model.FieldVendorName,
	"size":     model.FieldScreenSize,
	"battery":  model.FieldHasBattery,
	"touch":    model.FieldTouchscreen,
	"ips":      model.FieldIPSPanel,
	"mount":    model.FieldWallMount,
	"category": model.FieldProductType,
}

// cleanJSON strips markdown fences and surrounding prose from model output.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return trailingComma.ReplaceAllString(strings.TrimSpace(text), "$1")
}

// Parse decodes raw oracle output into a normalized field map. Decoding
// failures are transient so the caller may ask the oracle again.
func Parse(raw string) (map[string]any, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return nil, resilience.Transient(eris.Wrap(ErrMalformed, "extract: empty response"))
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, resilience.Transient(eris.Wrapf(ErrMalformed, "extract: decode: %v", err))
	}
	if fields == nil {
		return nil, resilience.Transient(eris.Wrap(ErrMalformed, "extract: not an object"))
	}
	return Normalize(fields), nil
}

// Normalize rewrites a decoded field map in place and returns it: aliases
// become canonical keys, null tokens become nil, lists are joined into one
// string, yes/no strings in boolean fields become booleans, numeric screen
// sizes become strings and the platform is lowercased.
func Normalize(fields map[string]any) map[string]any {
	for alias, key := range fieldAliases {
		v, ok := fields[alias]
		if !ok {
			continue
		}
		if _, exists := fields[key]; !exists {
			fields[key] = v
		}
		delete(fields, alias)
	}

	for k, v := range fields {
		fields[k] = normalizeValue(k, v)
	}

	if p, ok := fields[model.FieldPlatform].(string); ok {
		fields[model.FieldPlatform] = strings.ToLower(p)
	}
	if f, ok := fields[model.FieldScreenSize].(float64); ok {
		fields[model.FieldScreenSize] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fields
}

func normalizeValue(key string, v any) any {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" || nullTokens[strings.ToLower(s)] {
			return nil
		}
		if boolFields[key] {
			if b, ok := parseBool(s); ok {
				return b
			}
		}
		return s
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if e == nil {
				continue
			}
			if s, ok := e.(string); ok {
				if s = strings.TrimSpace(s); s != "" && !nullTokens[strings.ToLower(s)] {
					parts = append(parts, s)
				}
				continue
			}
			b, err := json.Marshal(e)
			if err == nil {
				parts = append(parts, string(b))
			}
		}
		if len(parts) == 0 {
			return nil
		}
		return strings.Join(parts, ", ")
	}
	return v
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "yes", "y":
		return true, true
	case "false", "no", "n":
		return false, true
	}
	return false, false
}
