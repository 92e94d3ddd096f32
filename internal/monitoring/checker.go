package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/oem-scout/internal/config"
)

// Checker runs periodic validation health checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	busy      func() bool

	mu     sync.Mutex
	firing map[AlertType]bool
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{collector: collector, alerter: alerter, cfg: cfg, firing: make(map[AlertType]bool)}
}

// SkipWhile makes the checker skip ticks while busy reports true, so a
// discovery run that is still writing validation logs is never judged on a
// partial window.
func (c *Checker) SkipWhile(busy func() bool) *Checker {
	c.busy = busy
	return c
}

// Run checks on every interval tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("phase", "monitoring"))
	log.Info("validation health checker started",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
		zap.Bool("webhook", c.cfg.WebhookURL != ""),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("validation health checker stopped")
			return
		case <-ticker.C:
			if c.busy != nil && c.busy() {
				log.Debug("discovery run in flight, check skipped")
				continue
			}
			c.Check(ctx)
		}
	}
}

// Check collects one snapshot and delivers alerts that were not already
// firing on the previous check. It returns the newly raised alerts.
func (c *Checker) Check(ctx context.Context) []Alert {
	log := zap.L().With(zap.String("phase", "monitoring"))
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("snapshot collection failed", zap.Error(err))
		return nil
	}
	log.Info("validation health",
		zap.Int("validations", snap.Validations),
		zap.Float64("rejection_rate", snap.RejectionRate),
		zap.Int("grounding_failures", snap.GroundingFailures()),
		zap.Int("saved", snap.Saved),
	)

	raised := c.newlyFiring(c.alerter.Evaluate(snap))
	if len(raised) == 0 {
		return nil
	}
	sent := c.alerter.SendAlerts(ctx, raised)
	log.Info("alerts raised", zap.Int("raised", len(raised)), zap.Int("sent", sent))
	return raised
}

// newlyFiring filters alerts down to types that were clear last time and
// forgets types that have since cleared.
func (c *Checker) newlyFiring(alerts []Alert) []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := make(map[AlertType]bool, len(alerts))
	var out []Alert
	for _, a := range alerts {
		now[a.Type] = true
		if !c.firing[a.Type] {
			out = append(out, a)
		}
	}
	c.firing = now
	return out
}
