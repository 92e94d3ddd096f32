package quality

import (
	"strings"

	"github.com/sells-group/oem-scout/internal/model"
)

// Confidence penalties per failed check.
const (
	penaltyEmail      = 0.3
	penaltyProductURL = 0.3
	penaltyVendorURL  = 0.2
	penaltyPrice      = 0.2
	penaltyName       = 0.3
	penaltyUniqueness = 0.4

	passConfidence = 0.5
	maxIssues      = 3
)

// Issue prefixes identify which field a report issue refers to.
const (
	IssueEmail      = "email: "
	IssueProductURL = "product url: "
	IssueVendorURL  = "vendor url: "
	IssuePrice      = "price: "
	IssueVendorName = "vendor name: "
	IssueUniqueness = "uniqueness: "
)

// CheckExtraction runs every heuristic against c. Confidence starts at 1,
// loses a fixed amount per failed check and is floored at 0. The record
// passes only with confidence above 0.5 and fewer than three issues.
// Uniqueness is checked only when history is non-empty.
func CheckExtraction(c *model.Candidate, history []model.Candidate) model.QualityReport {
	var issues []string
	confidence := 1.0

	if bad, reason := IsPlaceholderEmail(model.Deref(c.Email), c.VendorName); bad {
		issues = append(issues, IssueEmail+reason)
		confidence -= penaltyEmail
	}
	if bad, reason := IsPlaceholderURL(model.Deref(c.ProductURL)); bad {
		issues = append(issues, IssueProductURL+reason)
		confidence -= penaltyProductURL
	}
	if bad, reason := IsPlaceholderURL(model.Deref(c.VendorURL)); bad {
		issues = append(issues, IssueVendorURL+reason)
		confidence -= penaltyVendorURL
	}
	if bad, reason := IsPlaceholderPrice(c.Price); bad {
		issues = append(issues, IssuePrice+reason)
		confidence -= penaltyPrice
	}
	if bad, reason := IsGenericVendorName(c.VendorName); bad {
		issues = append(issues, IssueVendorName+reason)
		confidence -= penaltyName
	}
	if len(history) > 0 {
		if ok, reason := CheckUniqueness(c, history); !ok {
			issues = append(issues, IssueUniqueness+reason)
			confidence -= penaltyUniqueness
		}
	}

	if confidence < 0 {
		confidence = 0
	}
	return model.QualityReport{
		Passed:     confidence > passConfidence && len(issues) < maxIssues,
		Issues:     issues,
		Confidence: confidence,
	}
}

// Sanitize applies deterministic recovery to c's contact fields, annotates
// c with a quality report and clears contact values that cannot be trusted.
//
// A recovered value always replaces the extracted one. An extracted contact
// value that was not recovered is cleared when the heuristics flag it or
// when it does not appear in the source text.
func Sanitize(c *model.Candidate, history []model.Candidate) model.QualityReport {
	recovered := map[string]bool{}
	if email := RecoverEmail(c.RawText, c.VendorName); email != "" {
		c.Email = &email
		recovered[model.FieldEmail] = true
	}
	urls := RecoverURLs(c.RawText)
	if urls.Vendor != "" {
		c.VendorURL = &urls.Vendor
		recovered[model.FieldVendorURL] = true
	}
	if urls.Product != "" {
		c.ProductURL = &urls.Product
		recovered[model.FieldProductURL] = true
	}

	report := CheckExtraction(c, history)

	source := strings.ToLower(c.RawText)
	untrusted := func(field string, v *string, issuePrefix string) *string {
		if v == nil || recovered[field] {
			return v
		}
		if !strings.Contains(source, strings.ToLower(*v)) || hasIssue(report, issuePrefix) {
			return nil
		}
		return v
	}
	c.Email = untrusted(model.FieldEmail, c.Email, IssueEmail)
	c.VendorURL = untrusted(model.FieldVendorURL, c.VendorURL, IssueVendorURL)
	c.ProductURL = untrusted(model.FieldProductURL, c.ProductURL, IssueProductURL)

	c.Recovered = c.Recovered[:0]
	for _, f := range []string{model.FieldEmail, model.FieldVendorURL, model.FieldProductURL} {
		if recovered[f] {
			c.Recovered = append(c.Recovered, f)
		}
	}
	c.Quality = report
	return report
}

func hasIssue(r model.QualityReport, prefix string) bool {
	for _, is := range r.Issues {
		if strings.HasPrefix(is, prefix) {
			return true
		}
	}
	return false
}
