package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/control-assist/internal/config"
)

// defaultCheckInterval applies when CheckIntervalSecs is not positive.
const defaultCheckInterval = 5 * time.Minute

// Checker ties a Collector and an Alerter together.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a Checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{collector: collector, alerter: alerter, cfg: cfg}
}

func (c *Checker) interval() time.Duration {
	if c.cfg.CheckIntervalSecs <= 0 {
		return defaultCheckInterval
	}
	return time.Duration(c.cfg.CheckIntervalSecs) * time.Second
}

// Run checks provider health every interval until ctx is done. Check
// failures are logged and do not stop the loop.
func (c *Checker) Run(ctx context.Context) {
	every := c.interval()
	log := zap.L().Named("monitoring").With(zap.Duration("interval", every))
	log.Info("provider health checker started", zap.Int("lookback_hours", c.cfg.LookbackWindowHours))

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("provider health checker stopped")
			return
		case <-ticker.C:
			if _, err := c.Check(ctx); err != nil {
				log.Error("provider health check failed", zap.Error(err))
			}
		}
	}
}

// Check collects one snapshot, evaluates it and delivers any alerts. It
// returns the alerts raised, whether or not delivery succeeded.
func (c *Checker) Check(ctx context.Context) ([]Alert, error) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		return nil, err
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		zap.L().Debug("monitoring: all providers healthy", zap.Int64("calls", snap.TotalCalls))
		return nil, nil
	}

	sent := c.alerter.SendAlerts(ctx, snap.LookbackHours, alerts)
	zap.L().Info("monitoring: provider health check raised alerts",
		zap.Int("alerts", len(alerts)),
		zap.Int("delivered", sent),
	)
	return alerts, nil
}
