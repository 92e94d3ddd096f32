package quality

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	urlPattern   = regexp.MustCompile(`https?://[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}[^\s]*`)
)

// RecoverEmail returns the first literal email in text that is not a
// template, preferring one whose domain stem overlaps vendorName. It returns
// "" when none survive.
func RecoverEmail(text, vendorName string) string {
	var real []string
	for _, e := range emailPattern.FindAllString(text, -1) {
		if bad, _ := IsPlaceholderEmail(e, ""); !bad {
			real = append(real, e)
		}
	}
	if len(real) == 0 {
		return ""
	}

	if vendorName != "" {
		vendor := strings.ToLower(strings.NewReplacer(" ", "", ",", "").Replace(vendorName))
		for _, e := range real {
			_, domain, _ := strings.Cut(e, "@")
			stem, _, _ := strings.Cut(strings.ToLower(domain), ".")
			if stem != "" && (strings.Contains(vendor, stem) || strings.Contains(stem, vendor)) {
				return e
			}
		}
	}
	return real[0]
}

// URLs is the result of URL recovery. Empty strings mean not found.
type URLs struct {
	Vendor  string `json:"vendor_url,omitempty"`
	Product string `json:"product_url,omitempty"`
}

// RecoverURLs partitions the well-formed URLs in text into a vendor URL and
// a product URL. A URL is a product URL when it mentions /product or /item
// or has at least two path segments. The first vendor URL and the last
// product URL win; when only one kind is present it fills both roles.
func RecoverURLs(text string) URLs {
	var real, vendors, products []string
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:)]}>\"'")
		if bad, _ := IsPlaceholderURL(u); bad {
			continue
		}
		real = append(real, u)
		if isProductURL(u) {
			products = append(products, u)
		} else {
			vendors = append(vendors, u)
		}
	}
	if len(real) == 0 {
		return URLs{}
	}

	var out URLs
	switch {
	case len(vendors) > 0 && len(products) > 0:
		out.Vendor, out.Product = vendors[0], products[len(products)-1]
	case len(vendors) > 0:
		out.Vendor, out.Product = vendors[0], vendors[len(vendors)-1]
	default:
		out.Vendor, out.Product = products[0], products[len(products)-1]
	}
	return out
}

func isProductURL(u string) bool {
	lower := strings.ToLower(u)
	return strings.Contains(lower, "/product") || strings.Contains(lower, "/item") || len(strings.Split(u, "/")) > 4
}
