package feedback

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/oem-scout/internal/model"
)

// ErrUnrecognized is returned when a feedback message carries no verdict.
var ErrUnrecognized = eris.New("feedback: unrecognized verdict")

const noReason = "No reason provided"

var (
	verdictWithSep   = regexp.MustCompile(`(?i)^(relevant|not relevant|irrelevant|skip|maybe)\s*[-:]\s*(.+)$`)
	verdictWithSpace = regexp.MustCompile(`(?i)^(relevant|not relevant|irrelevant|skip|maybe)\s+(.+)$`)
	verdictOnly      = regexp.MustCompile(`(?i)^(relevant|not relevant|irrelevant|skip|maybe)$`)
)

// ParseFeedback reads a free-text judgment such as "relevant - good price"
// or "not relevant: has battery".
func ParseFeedback(text string) (model.Sentiment, string, error) {
	text = strings.TrimSpace(text)

	var verdict, reason string
	if m := verdictWithSep.FindStringSubmatch(text); m != nil {
		verdict, reason = m[1], m[2]
	} else if m := verdictOnly.FindStringSubmatch(text); m != nil {
		verdict = m[1]
	} else if m := verdictWithSpace.FindStringSubmatch(text); m != nil {
		verdict, reason = m[1], m[2]
	} else {
		return "", "", eris.Wrapf(ErrUnrecognized, "feedback: parse %q", text)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = noReason
	}
	return sentimentOf(verdict), reason, nil
}

// ParseSentiment maps a verdict word to a sentiment.
func ParseSentiment(s string) (model.Sentiment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "relevant":
		return model.SentimentPositive, nil
	case "negative", "not relevant", "irrelevant":
		return model.SentimentNegative, nil
	case "neutral", "skip", "maybe":
		return model.SentimentNeutral, nil
	}
	return "", eris.Wrapf(ErrUnrecognized, "feedback: sentiment %q", s)
}

func sentimentOf(verdict string) model.Sentiment {
	s, _ := ParseSentiment(verdict)
	return s
}
