// Package extract turns raw listing text into an unvalidated field map using
// the extraction model, with a rule-based fallback when the model's output
// cannot be parsed.
package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/oem-scout/internal/config"
	"github.com/sells-group/oem-scout/internal/resilience"
	"github.com/sells-group/oem-scout/pkg/anthropic"
)

// Oracle answers an extraction prompt with the model's raw text.
type Oracle interface {
	Extract(ctx context.Context, prompt string) (string, error)
}

const systemPrompt = "You are a data extraction bot. You return a single JSON object and nothing else."

// AnthropicOracle implements Oracle with the Messages API.
type AnthropicOracle struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
}

// NewAnthropicOracle creates an oracle using the configured model.
func NewAnthropicOracle(client anthropic.Client, cfg config.AnthropicConfig) *AnthropicOracle {
	return &AnthropicOracle{client: client, cfg: cfg}
}

// Extract sends prompt at temperature 0. Rate limits and server errors come
// back as transient errors.
func (o *AnthropicOracle) Extract(ctx context.Context, prompt string) (string, error) {
	temp := 0.0
	resp, err := o.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       o.cfg.Model,
		MaxTokens:   o.cfg.MaxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		if code := anthropic.StatusCode(err); resilience.IsTransientHTTPStatus(code) {
			return "", resilience.NewTransientError(eris.Wrap(err, "extract: oracle call"), code)
		}
		return "", eris.Wrap(err, "extract: oracle call")
	}
	resp.Usage.LogUsage(o.cfg.Model, "extract")
	return resp.Text(), nil
}
