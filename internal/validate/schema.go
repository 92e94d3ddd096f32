package validate

import (
	"fmt"
	"strings"

	"github.com/sells-group/oem-scout/internal/model"
)

// Kind is a JSON value kind accepted by a schema field.
type Kind uint8

const (
	KindString Kind = 1 << iota
	KindNumber
	KindBool
	KindNull
)

func (k Kind) String() string {
	var names []string
	for _, e := range []struct {
		k    Kind
		name string
	}{{KindString, "string"}, {KindNumber, "number"}, {KindBool, "bool"}, {KindNull, "null"}} {
		if k&e.k != 0 {
			names = append(names, e.name)
		}
	}
	return strings.Join(names, "|")
}

// FieldRule declares one required field and the kinds it may hold.
type FieldRule struct {
	Name  string
	Kinds Kind
}

// Schema is the ordered set of fields every extraction must carry.
type Schema []FieldRule

// CandidateSchema is the extraction schema for vendor listings.
var CandidateSchema = Schema{
	{model.FieldVendorName, KindString},
	{model.FieldPlatform, KindString | KindNull},
	{model.FieldProductType, KindString | KindNull},
	{model.FieldOS, KindString | KindNull},
	{model.FieldScreenSize, KindString | KindNull},
	{model.FieldWallMount, KindBool | KindNull},
	{model.FieldHasBattery, KindBool | KindNull},
	{model.FieldTouchscreen, KindBool | KindNull},
	{model.FieldCameraFront, KindBool | KindNull},
	{model.FieldCustomizable, KindBool | KindNull},
	{model.FieldIPSPanel, KindBool | KindNull},
	{model.FieldMOQ, KindNumber | KindString | KindNull},
	{model.FieldPrice, KindNumber | KindString | KindNull},
	{model.FieldEmail, KindString | KindNull},
	{model.FieldProductURL, KindString | KindNull},
	{model.FieldVendorURL, KindString | KindNull},
	{model.FieldDescription, KindString | KindNull},
}

// Fields returns the field names in schema order.
func (s Schema) Fields() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

func kindOf(v any) (Kind, string) {
	switch v.(type) {
	case nil:
		return KindNull, "null"
	case string:
		return KindString, "string"
	case float64, float32, int, int64:
		return KindNumber, "number"
	case bool:
		return KindBool, "bool"
	case []any:
		return 0, "list"
	case map[string]any:
		return 0, "object"
	default:
		return 0, fmt.Sprintf("%T", v)
	}
}

// checkFormat verifies every schema field exists with an allowed kind.
func (s Schema) checkFormat(fields map[string]any) model.LayerResult {
	var problems []string
	for _, rule := range s {
		v, ok := fields[rule.Name]
		if !ok {
			problems = append(problems, "missing field "+rule.Name)
			continue
		}
		k, name := kindOf(v)
		if k&rule.Kinds == 0 {
			problems = append(problems, fmt.Sprintf("field %s: expected %s, got %s", rule.Name, rule.Kinds, name))
		}
	}
	if len(problems) > 0 {
		return model.LayerResult{Layer: model.LayerFormat, Passed: false, Reason: strings.Join(problems, "; "), Confidence: 0}
	}
	return model.LayerResult{
		Layer:      model.LayerFormat,
		Passed:     true,
		Reason:     fmt.Sprintf("all %d fields present and well-typed", len(s)),
		Confidence: 1.0,
	}
}
