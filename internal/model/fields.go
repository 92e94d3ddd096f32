package model

import (
	"math"
	"strconv"
	"strings"
)

// Extraction field keys shared by the oracle prompt, the format schema and
// candidate decoding.
const (
	FieldVendorName   = "vendor_name"
	FieldPlatform     = "platform"
	FieldProductType  = "product_type"
	FieldOS           = "os"
	FieldScreenSize   = "screen_size"
	FieldWallMount    = "wall_mount"
	FieldHasBattery   = "has_battery"
	FieldTouchscreen  = "touchscreen"
	FieldCameraFront  = "camera_front"
	FieldCustomizable = "customizable"
	FieldIPSPanel     = "ips_panel"
	FieldMOQ          = "moq"
	FieldPrice        = "price_per_unit"
	FieldEmail        = "contact_email"
	FieldProductURL   = "product_url"
	FieldVendorURL    = "vendor_url"
	FieldDescription  = "description"
)

// RawExtraction is unvalidated oracle output after normalization.
type RawExtraction struct {
	Fields   map[string]any `json:"fields"`
	Source   string         `json:"source"`
	Platform string         `json:"platform,omitempty"`
	Keyword  string         `json:"keyword,omitempty"`
	Fallback bool           `json:"fallback,omitempty"`
}

// CandidateFromFields decodes a format-checked field map. Values of the
// wrong shape decode to nil rather than erroring.
func CandidateFromFields(fields map[string]any) *Candidate {
	c := &Candidate{
		VendorName:   stringField(fields, FieldVendorName),
		Platform:     strings.ToLower(stringField(fields, FieldPlatform)),
		ProductType:  optString(fields, FieldProductType),
		OS:           optString(fields, FieldOS),
		ScreenSize:   optString(fields, FieldScreenSize),
		WallMount:    optBool(fields, FieldWallMount),
		HasBattery:   optBool(fields, FieldHasBattery),
		Touchscreen:  optBool(fields, FieldTouchscreen),
		CameraFront:  optBool(fields, FieldCameraFront),
		Customizable: optBool(fields, FieldCustomizable),
		IPSPanel:     optBool(fields, FieldIPSPanel),
		Email:        optString(fields, FieldEmail),
		ProductURL:   optString(fields, FieldProductURL),
		VendorURL:    optString(fields, FieldVendorURL),
		Description:  stringField(fields, FieldDescription),
	}
	if f, ok := ParseNumber(fields[FieldPrice]); ok {
		c.Price = &f
	}
	if f, ok := ParseNumber(fields[FieldMOQ]); ok {
		c.MOQ = quantity(f)
	}
	return c
}

// quantity rounds f to an order quantity. Negative and NaN values decode to
// nil; anything past MaxInt32 is pinned there so ceilings still trip.
func quantity(f float64) *int {
	if math.IsNaN(f) || f < 0 {
		return nil
	}
	n := math.MaxInt32
	if f < math.MaxInt32 {
		n = int(math.Round(f))
	}
	return &n
}

// ParseNumber accepts float64, int and numeric strings such as "$1,250.50"
// or "100 pieces".
func ParseNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		s := strings.TrimSpace(strings.NewReplacer("$", "", ",", "", "USD", "", "US", "").Replace(t))
		if i := strings.IndexFunc(s, func(r rune) bool { return !(r >= '0' && r <= '9' || r == '.') }); i >= 0 {
			s = s[:i]
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return strings.TrimSpace(s)
}

func optString(fields map[string]any, key string) *string {
	s, ok := fields[key].(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optBool(fields map[string]any, key string) *bool {
	b, ok := fields[key].(bool)
	if !ok {
		return nil
	}
	return &b
}
