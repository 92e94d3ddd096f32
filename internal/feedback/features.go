package feedback

import (
	"strings"

	"github.com/sells-group/oem-scout/internal/model"
)

// Feature types stored in the pattern table.
const (
	FeatureProductType   = "product_type"
	FeatureOS            = "os"
	FeatureScreenSize    = "screen_size"
	FeatureWallMount     = "wall_mount"
	FeatureHasBattery    = "has_battery"
	FeaturePlatform      = "platform"
	FeaturePriceBucket   = "price_bucket"
	FeatureMOQBucket     = "moq_bucket"
	FeatureCity          = "city"
	FeatureReasonKeyword = "reason_keyword"
)

// Feature is one (type, value) observation derived from a candidate.
type Feature struct {
	Type  string
	Value string
}

// Cities recognized inside vendor names.
var Cities = []string{
	"Shenzhen", "Guangzhou", "Dongguan", "Foshan", "Beijing",
	"Shanghai", "Hangzhou", "Ningbo", "Xiamen",
}

// KeywordGroup is a family of reason words. Only the first hit per group is
// learned.
type KeywordGroup struct {
	Name  string
	Words []string
}

// ReasonKeywords is the fixed vocabulary matched against free-text reasons.
var ReasonKeywords = []KeywordGroup{
	{Name: "price", Words: []string{"price", "pricing", "cost", "expensive", "cheap", "affordable"}},
	{Name: "battery", Words: []string{"battery", "batteries", "power"}},
	{Name: "wall_mount", Words: []string{"wall mount", "wall-mount", "mounting", "vesa"}},
	{Name: "email", Words: []string{"email", "contact", "reach"}},
	{Name: "specifications", Words: []string{"specs", "specifications", "features"}},
	{Name: "quality", Words: []string{"quality", "build", "premium", "cheap looking"}},
	{Name: "customization", Words: []string{"custom", "customizable", "modify", "oem", "odm"}},
}

// Features extracts the learnable features of c. Unknown attributes yield
// no feature.
func Features(c *model.Candidate) []Feature {
	var out []Feature
	add := func(typ, val string) {
		val = strings.ToLower(strings.TrimSpace(val))
		if val != "" {
			out = append(out, Feature{Type: typ, Value: val})
		}
	}

	add(FeatureProductType, model.Deref(c.ProductType))
	add(FeatureOS, model.Deref(c.OS))
	add(FeatureScreenSize, model.Deref(c.ScreenSize))
	if c.WallMount != nil {
		add(FeatureWallMount, yesNo(*c.WallMount))
	}
	if c.HasBattery != nil {
		add(FeatureHasBattery, yesNo(*c.HasBattery))
	}
	add(FeaturePlatform, c.Platform)
	if c.Price != nil {
		add(FeaturePriceBucket, PriceBucket(*c.Price))
	}
	if c.MOQ != nil {
		add(FeatureMOQBucket, MOQBucket(*c.MOQ))
	}
	add(FeatureCity, City(c.VendorName))
	return out
}

// PriceBucket maps a unit price to its range label.
func PriceBucket(p float64) string {
	switch {
	case p < 70:
		return "under_70"
	case p <= 90:
		return "70_to_90"
	case p <= 130:
		return "90_to_130"
	default:
		return "over_130"
	}
}

// MOQBucket maps a minimum order quantity to its range label.
func MOQBucket(n int) string {
	switch {
	case n <= 100:
		return "under_100"
	case n <= 500:
		return "100_to_500"
	case n <= 1000:
		return "500_to_1000"
	default:
		return "over_1000"
	}
}

// City returns the first known city named in vendorName, lowercased, or "".
func City(vendorName string) string {
	lower := strings.ToLower(vendorName)
	for _, c := range Cities {
		if strings.Contains(lower, strings.ToLower(c)) {
			return strings.ToLower(c)
		}
	}
	return ""
}

// Keywords returns the first vocabulary word found in reason for each group.
func Keywords(reason string) []string {
	lower := strings.ToLower(reason)
	var out []string
	for _, g := range ReasonKeywords {
		for _, w := range g.Words {
			if strings.Contains(lower, w) {
				out = append(out, w)
				break
			}
		}
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
