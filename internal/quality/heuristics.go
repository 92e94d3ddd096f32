// Package quality flags placeholder and fabricated values in extracted
// candidates and recovers literal contact details from source text.
package quality

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/sells-group/oem-scout/internal/model"
)

var (
	placeholderEmails = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^sales@company\.com$`),
		regexp.MustCompile(`(?i)^info@company\.com$`),
		regexp.MustCompile(`(?i)^contact@company\.com$`),
		regexp.MustCompile(`(?i)^example@example\.com$`),
		regexp.MustCompile(`(?i)^vendor@vendor\.com$`),
		regexp.MustCompile(`(?i)^email@email\.com$`),
	}
	placeholderURLs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^product-page-url`),
		regexp.MustCompile(`(?i)^company-website$`),
		regexp.MustCompile(`(?i)^http://example\.com`),
		regexp.MustCompile(`(?i)^www\.example\.com`),
		regexp.MustCompile(`(?i)^vendor-website`),
		regexp.MustCompile(`(?i)placeholder`),
	}
	genericNames = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^company name$`),
		regexp.MustCompile(`(?i)^vendor name$`),
		regexp.MustCompile(`(?i)^unknown`),
	}

	realURL         = regexp.MustCompile(`^https?://[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	realCompanyName = regexp.MustCompile(`(Shenzhen|Guangzhou|Dongguan|Foshan|Beijing|Shanghai).+(Co\.|Ltd\.|Technology|Electronics|Display)`)

	// Stock example prices the extractor tends to emit.
	placeholderPrices = []float64{125.5, 100.0, 99.99}

	roleAccounts = map[string]bool{
		"sales": true, "info": true, "contact": true,
		"inquiry": true, "service": true, "support": true,
	}
	vendorStopwords = map[string]bool{
		"shenzhen": true, "guangzhou": true, "beijing": true, "shanghai": true,
		"china": true, "technology": true, "electronics": true, "limited": true, "company": true,
	}
)

// minVendorNameLen is the shortest name accepted without a recognized
// city-plus-suffix shape.
const minVendorNameLen = 10

func isNullToken(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "null" || s == "None"
}

// IsPlaceholderEmail reports whether email is empty, a known template, or
// carries the fabrication signature: a role account whose domain stem was
// derived from a word of vendorName.
func IsPlaceholderEmail(email, vendorName string) (bool, string) {
	if isNullToken(email) {
		return true, "email is null"
	}
	for _, re := range placeholderEmails {
		if re.MatchString(email) {
			return true, fmt.Sprintf("placeholder email pattern: %s", email)
		}
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || vendorName == "" {
		return false, "email appears real"
	}
	local = strings.ToLower(local)
	stem, _, _ := strings.Cut(strings.ToLower(domain), ".")
	if !roleAccounts[local] || stem == "" {
		return false, "email appears real"
	}
	for _, part := range vendorWords(vendorName) {
		if strings.Contains(stem, part) || strings.Contains(part, stem) {
			return true, fmt.Sprintf("email likely fabricated: generic %s@ with domain %q derived from vendor word %q", local, stem, part)
		}
	}
	return false, "email appears real"
}

// vendorWords returns the significant lowercase alphanumeric words of a
// vendor name.
func vendorWords(name string) []string {
	var out []string
	for _, w := range strings.Fields(name) {
		clean := alnumLower(w)
		if len(clean) >= 3 && !vendorStopwords[clean] {
			out = append(out, clean)
		}
	}
	return out
}

func alnumLower(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// IsPlaceholderURL reports whether url is empty, a template token, or not a
// well-formed absolute http(s) URL.
func IsPlaceholderURL(url string) (bool, string) {
	if isNullToken(url) {
		return true, "url is null"
	}
	for _, re := range placeholderURLs {
		if re.MatchString(url) {
			return true, fmt.Sprintf("placeholder url pattern: %s", url)
		}
	}
	if !realURL.MatchString(url) {
		return true, "url is not a well-formed http(s) address"
	}
	return false, "url appears real"
}

// IsPlaceholderPrice reports whether price is missing, a stock example value
// or a multiple of 50 above 50. The round-number rule also rejects some
// genuine prices; that loss is accepted.
func IsPlaceholderPrice(price *float64) (bool, string) {
	if price == nil {
		return true, "price is null"
	}
	p := *price
	for _, stock := range placeholderPrices {
		if math.Abs(p-stock) < 1e-9 {
			return true, fmt.Sprintf("stock placeholder price: $%g", p)
		}
	}
	if p > 50 && math.Mod(p, 50) == 0 {
		return true, fmt.Sprintf("suspiciously round price: $%g", p)
	}
	return false, "price appears real"
}

// IsGenericVendorName reports whether name is empty, a template literal or
// too short to be a registered company name.
func IsGenericVendorName(name string) (bool, string) {
	if isNullToken(name) {
		return true, "vendor name is null"
	}
	for _, re := range genericNames {
		if re.MatchString(name) {
			return true, fmt.Sprintf("generic vendor name: %s", name)
		}
	}
	if realCompanyName.MatchString(name) {
		return false, "vendor name matches a registered company shape"
	}
	if len(name) < minVendorNameLen {
		return true, fmt.Sprintf("vendor name too short: %s", name)
	}
	return false, "vendor name appears real"
}

// Uniqueness thresholds: the same contact or price recurring across many
// unrelated vendors indicates invented data.
const (
	maxSharedEmail = 3
	maxSharedPrice = 5
)

// CheckUniqueness reports false when c's email or price recurs too often in
// history, or when its (vendor name, product URL) pair already exists.
func CheckUniqueness(c *model.Candidate, history []model.Candidate) (bool, string) {
	if c.Email != nil && *c.Email != "" {
		n := 0
		for i := range history {
			if history[i].Email != nil && *history[i].Email == *c.Email {
				n++
			}
		}
		if n > maxSharedEmail {
			return false, fmt.Sprintf("email %q appears in %d vendors", *c.Email, n)
		}
	}

	if c.Price != nil && *c.Price != 0 {
		n := 0
		for i := range history {
			if history[i].Price != nil && *history[i].Price == *c.Price {
				n++
			}
		}
		if n > maxSharedPrice {
			return false, fmt.Sprintf("price $%g appears in %d vendors", *c.Price, n)
		}
	}

	if c.VendorName != "" && c.ProductURL != nil && *c.ProductURL != "" {
		for i := range history {
			h := &history[i]
			if h.VendorName == c.VendorName && h.ProductURL != nil && *h.ProductURL == *c.ProductURL {
				return false, fmt.Sprintf("duplicate: %s + %s", c.VendorName, *c.ProductURL)
			}
		}
	}
	return true, "data appears unique"
}
