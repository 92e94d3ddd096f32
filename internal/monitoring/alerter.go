// Package monitoring watches validation outcomes and posts webhook alerts
// when rejection or hallucination rates drift past configured thresholds.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/oem-scout/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRejectionRate    AlertType = "rejection_rate"
	AlertGroundingFailure AlertType = "grounding_failures"
	AlertAccuracyDrop     AlertType = "accuracy_drop"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.Validations >= a.cfg.MinSample && snap.Validations > 0 &&
		snap.RejectionRate > a.cfg.RejectionRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRejectionRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Rejection rate %.1f%% exceeds threshold %.1f%% (%d rejected / %d validated in last %dh)",
				snap.RejectionRate*100, a.cfg.RejectionRateThreshold*100,
				snap.Rejected, snap.Validations, snap.LookbackHours,
			),
			Details: map[string]any{
				"rejection_rate": snap.RejectionRate,
				"threshold":      a.cfg.RejectionRateThreshold,
				"by_layer":       snap.ByLayer,
			},
			Timestamp: now,
		})
	}

	// Grounding failures mean the extractor is inventing values.
	if g := snap.GroundingFailures(); a.cfg.GroundingFailureLimit > 0 && g >= a.cfg.GroundingFailureLimit {
		alerts = append(alerts, Alert{
			Type:     AlertGroundingFailure,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d candidate(s) failed factual grounding in last %dh",
				g, snap.LookbackHours,
			),
			Details: map[string]any{
				"grounding_failures": g,
				"limit":              a.cfg.GroundingFailureLimit,
			},
			Timestamp: now,
		})
	}

	if snap.HasAccuracy && a.cfg.MinAccuracyPoints > 0 && snap.AccuracyPoints < a.cfg.MinAccuracyPoints {
		alerts = append(alerts, Alert{
			Type:     AlertAccuracyDrop,
			Severity: "high",
			Message: fmt.Sprintf(
				"Accuracy ledger at %d points, below minimum %d",
				snap.AccuracyPoints, a.cfg.MinAccuracyPoints,
			),
			Details: map[string]any{
				"points":  snap.AccuracyPoints,
				"minimum": a.cfg.MinAccuracyPoints,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts posts each alert to the webhook and returns how many were
// accepted. Delivery failures are logged, never returned.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}

	log := zap.L().With(zap.String("phase", "monitoring"))
	sent := 0
	for _, alert := range alerts {
		if err := a.post(ctx, alert); err != nil {
			log.Error("alert delivery failed", zap.String("type", string(alert.Type)), zap.Error(err))
			continue
		}
		log.Info("alert delivered",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: encode alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post alert")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		return eris.Errorf("monitoring: webhook answered %d", resp.StatusCode)
	}
	return nil
}
