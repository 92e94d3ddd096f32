package model

import "time"

// Sentiment is a human judgment on a candidate.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Learnable reports whether feedback with this sentiment feeds the pattern store.
func (s Sentiment) Learnable() bool {
	return s == SentimentPositive || s == SentimentNegative
}

// QualityReport is the heuristic annotation attached to a candidate.
type QualityReport struct {
	Passed     bool     `json:"passed"`
	Issues     []string `json:"issues,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Candidate is one vendor/product observation. Nullable attributes are
// pointers; nil means the source did not state the value.
type Candidate struct {
	ID       string `json:"id"`
	RunID    string `json:"run_id,omitempty"`
	Platform string `json:"platform,omitempty"`
	Keyword  string `json:"keyword,omitempty"`

	VendorName   string  `json:"vendor_name"`
	ProductType  *string `json:"product_type"`
	OS           *string `json:"os"`
	ScreenSize   *string `json:"screen_size"`
	WallMount    *bool   `json:"wall_mount"`
	HasBattery   *bool   `json:"has_battery"`
	Touchscreen  *bool   `json:"touchscreen"`
	CameraFront  *bool   `json:"camera_front"`
	Customizable *bool   `json:"customizable"`
	IPSPanel     *bool   `json:"ips_panel"`

	MOQ   *int     `json:"moq"`
	Price *float64 `json:"price_per_unit"`

	Email      *string `json:"contact_email"`
	ProductURL *string `json:"product_url"`
	VendorURL  *string `json:"vendor_url"`

	Description string `json:"description"`
	RawText     string `json:"raw_text,omitempty"`

	Score     int           `json:"score"`
	Quality   QualityReport `json:"quality"`
	Recovered []string      `json:"recovered,omitempty"`
	Fallback  bool          `json:"fallback,omitempty"`

	Feedback       Sentiment  `json:"feedback,omitempty"`
	FeedbackReason string     `json:"feedback_reason,omitempty"`
	FeedbackAt     *time.Time `json:"feedback_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Interaction is the outreach history for one vendor name.
type Interaction struct {
	VendorName   string     `json:"vendor_name"`
	EmailsSent   int        `json:"emails_sent"`
	LastEmailAt  *time.Time `json:"last_email_at,omitempty"`
	LastScore    *int       `json:"last_score,omitempty"`
	LastResponse string     `json:"last_response,omitempty"`
}

// Pattern is a learned (feature type, feature value, sentiment) association.
type Pattern struct {
	FeatureType  string    `json:"feature_type"`
	FeatureValue string    `json:"feature_value"`
	Sentiment    Sentiment `json:"sentiment"`
	Count        int       `json:"count"`
	LastSeen     time.Time `json:"last_seen"`
}

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to n.
func Int(n int) *int { return &n }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FeedbackStats summarizes recorded human judgments.
type FeedbackStats struct {
	Total    int `json:"total"`
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
	Patterns int `json:"patterns"`
}
