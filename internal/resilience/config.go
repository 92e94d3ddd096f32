package resilience

import (
	"time"

	"github.com/sells-group/oem-scout/internal/config"
)

// ExtractRetryConfig derives the extraction retry loop from pipeline
// settings: one first try plus extract_retries retries.
func ExtractRetryConfig(cfg config.PipelineConfig) RetryConfig {
	rc := DefaultRetryConfig()
	rc.Attempts = max(cfg.ExtractRetries, 0) + 1
	if cfg.RetryBackoffMs > 0 {
		rc.Backoff = time.Duration(cfg.RetryBackoffMs) * time.Millisecond
	}
	rc.OnRetry = RetryLogger("oracle", "extract")
	return rc
}
