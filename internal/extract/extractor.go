package extract

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/oem-scout/internal/config"
	"github.com/sells-group/oem-scout/internal/model"
	"github.com/sells-group/oem-scout/internal/resilience"
)

// ErrTooShort is returned when the source text is too short to extract from.
var ErrTooShort = eris.New("extract: no content to extract from")

// Input is one listing to extract.
type Input struct {
	Text     string
	Platform string
	Keyword  string
}

// Extractor asks the oracle for a field map, retrying malformed answers and
// falling back to pattern extraction once the retries are spent.
type Extractor struct {
	oracle   Oracle
	cfg      config.PipelineConfig
	retry    resilience.RetryConfig
	fallback bool
}

// NewExtractor returns an Extractor with retries derived from cfg.
func NewExtractor(oracle Oracle, cfg config.PipelineConfig) *Extractor {
	return &Extractor{
		oracle:   oracle,
		cfg:      cfg,
		retry:    resilience.ExtractRetryConfig(cfg),
		fallback: true,
	}
}

// WithRetry replaces the retry policy. Tests use it to drop the backoff.
func (e *Extractor) WithRetry(rc resilience.RetryConfig) *Extractor {
	e.retry = rc
	return e
}

// WithoutFallback makes exhausted retries fail instead of degrading.
func (e *Extractor) WithoutFallback() *Extractor {
	e.fallback = false
	return e
}

// Extract returns the normalized extraction for in. The source text is
// truncated to the configured maximum before prompting. Transient failures
// are retried; when every attempt fails transiently the result comes from
// Fallback with Fallback set. Context errors and non-transient oracle errors
// are returned as is.
func (e *Extractor) Extract(ctx context.Context, in Input) (model.RawExtraction, error) {
	text := Truncate(in.Text, e.cfg.MaxSourceChars)
	if utf8.RuneCountInString(text) < e.cfg.MinSourceChars {
		return model.RawExtraction{}, ErrTooShort
	}

	raw := model.RawExtraction{Source: text, Platform: in.Platform, Keyword: in.Keyword}
	prompt := BuildPrompt(text, in.Platform, in.Keyword, e.cfg.MaxSourceChars)

	attempts := 0
	fields, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (map[string]any, error) {
		attempts++
		answer, err := e.oracle.Extract(ctx, prompt)
		if err != nil {
			return nil, err
		}
		return Parse(answer)
	})
	if err == nil {
		raw.Fields = fields
		return raw, nil
	}

	if ctx.Err() != nil {
		return model.RawExtraction{}, eris.Wrap(ctx.Err(), "extract: cancelled")
	}
	if !e.fallback || !resilience.IsTransient(err) {
		return model.RawExtraction{}, eris.Wrapf(err, "extract: after %d attempts", attempts)
	}

	zap.L().With(zap.String("phase", "extract")).Warn("extract: falling back to pattern extraction",
		zap.Int("attempts", attempts),
		zap.Bool("malformed", errors.Is(err, ErrMalformed)),
		zap.Error(err),
	)
	raw.Fields = Fallback(text, in.Platform)
	raw.Fallback = true
	return raw, nil
}
