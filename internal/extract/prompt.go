package extract

import (
	"fmt"
	"strings"

	"github.com/sells-group/oem-scout/internal/model"
)

// fieldHints describes each extraction field to the model, in prompt order.
var fieldHints = []struct {
	key  string
	hint string
}{
	{model.FieldVendorName, `"exact company name from text or Unknown"`},
	{model.FieldPlatform, `"alibaba or made-in-china or globalsources or other"`},
	{model.FieldProductType, `"product type as written, e.g. digital signage, tablet, monitor, or Unknown"`},
	{model.FieldOS, `"operating system mentioned or Unknown"`},
	{model.FieldScreenSize, `"screen size mentioned or Unknown"`},
	{model.FieldWallMount, `true/false/null`},
	{model.FieldHasBattery, `true/false/null`},
	{model.FieldTouchscreen, `true/false/null`},
	{model.FieldCameraFront, `true/false/null`},
	{model.FieldCustomizable, `true/false/null`},
	{model.FieldIPSPanel, `true/false/null`},
	{model.FieldMOQ, `"minimum order quantity as number or Unknown"`},
	{model.FieldPrice, `"price per unit in USD or Unknown"`},
	{model.FieldEmail, `"contact email exactly as written or Unknown"`},
	{model.FieldProductURL, `"product URL if mentioned or Unknown"`},
	{model.FieldVendorURL, `"company website if mentioned or Unknown"`},
	{model.FieldDescription, `"brief product description from text"`},
}

const promptTemplate = `You are a data extraction bot. Extract ONLY factual information from the text below.

RULES:
1. If information is NOT in the text, return "Unknown" or null
2. DO NOT guess or infer
3. DO NOT make up information
4. Extract exact numbers and text as they appear
5. Return valid JSON only
%s
Text to analyze:
%s

Extract these fields in JSON format:
{
%s
}

JSON output:`

// BuildPrompt renders the extraction prompt for text, truncated to maxChars
// runes. platform and keyword are passed as context when known.
func BuildPrompt(text, platform, keyword string, maxChars int) string {
	var ctx strings.Builder
	if platform != "" {
		fmt.Fprintf(&ctx, "\nListing platform: %s", platform)
	}
	if keyword != "" {
		fmt.Fprintf(&ctx, "\nSearch keyword: %s", keyword)
	}
	if ctx.Len() > 0 {
		ctx.WriteString("\n")
	}

	lines := make([]string, len(fieldHints))
	for i, f := range fieldHints {
		lines[i] = fmt.Sprintf("    %q: %s", f.key, f.hint)
	}
	return fmt.Sprintf(promptTemplate, ctx.String(), Truncate(text, maxChars), strings.Join(lines, ",\n"))
}

// Truncate cuts s to at most n runes. n <= 0 means no limit.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
