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

	"github.com/sells-group/control-assist/internal/config"
)

// AlertType names a provider health rule.
type AlertType string

const (
	AlertProviderErrorRate AlertType = "provider_error_rate"
	AlertProviderLatency   AlertType = "provider_latency"
	AlertCostOverrun       AlertType = "cost_overrun"
)

// highErrorRate is the error rate at which an error-rate alert is high
// severity.
const highErrorRate = 0.9

// Alert is one breached threshold.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Provider  string         `json:"provider,omitempty"`
	Model     string         `json:"model,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notification is the JSON body posted to the webhook.
type Notification struct {
	Service       string    `json:"service"`
	LookbackHours int       `json:"lookback_hours"`
	Alerts        []Alert   `json:"alerts"`
	SentAt        time.Time `json:"sent_at"`
}

// Alerter applies the monitoring thresholds to a snapshot and delivers the
// resulting alerts to a webhook. A zero threshold disables its rule.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an Alerter for cfg.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate returns the alerts raised by snap, provider rules first in
// snapshot order, then the cost rule. Providers with fewer than MinCalls
// calls are skipped.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	now := time.Now().UTC()

	var alerts []Alert
	for _, p := range snap.Providers {
		if p.Calls < int64(a.cfg.MinCalls) {
			continue
		}
		if al, ok := a.errorRateAlert(p, snap.LookbackHours, now); ok {
			alerts = append(alerts, al)
		}
		if al, ok := a.latencyAlert(p, now); ok {
			alerts = append(alerts, al)
		}
	}
	if al, ok := a.costAlert(snap, now); ok {
		alerts = append(alerts, al)
	}
	return alerts
}

func (a *Alerter) errorRateAlert(p ProviderHealth, lookback int, now time.Time) (Alert, bool) {
	limit := a.cfg.ErrorRateThreshold
	if limit <= 0 || p.ErrorRate <= limit {
		return Alert{}, false
	}
	severity := "medium"
	if p.ErrorRate >= highErrorRate {
		severity = "high"
	}
	return Alert{
		Type:     AlertProviderErrorRate,
		Severity: severity,
		Provider: string(p.Provider),
		Model:    p.Model,
		Message: fmt.Sprintf("%s/%s error rate %.1f%% exceeds threshold %.1f%% (%d failed / %d calls in last %dh)",
			p.Provider, p.Model, p.ErrorRate*100, limit*100, p.Errors, p.Calls, lookback),
		Details:   map[string]any{"error_rate": p.ErrorRate, "threshold": limit, "errors": p.Errors, "calls": p.Calls},
		Timestamp: now,
	}, true
}

func (a *Alerter) latencyAlert(p ProviderHealth, now time.Time) (Alert, bool) {
	limit := a.cfg.LatencyThresholdMs
	if limit <= 0 || p.AvgLatencyMs <= limit {
		return Alert{}, false
	}
	return Alert{
		Type:      AlertProviderLatency,
		Severity:  "low",
		Provider:  string(p.Provider),
		Model:     p.Model,
		Message:   fmt.Sprintf("%s/%s average latency %.0fms exceeds threshold %.0fms", p.Provider, p.Model, p.AvgLatencyMs, limit),
		Details:   map[string]any{"avg_latency_ms": p.AvgLatencyMs, "threshold_ms": limit},
		Timestamp: now,
	}, true
}

func (a *Alerter) costAlert(snap *MetricsSnapshot, now time.Time) (Alert, bool) {
	limit := a.cfg.CostThresholdUSD
	if limit <= 0 || snap.CostUSD <= limit {
		return Alert{}, false
	}
	return Alert{
		Type:      AlertCostOverrun,
		Severity:  "high",
		Message:   fmt.Sprintf("Generation cost $%.2f exceeds threshold $%.2f in last %dh", snap.CostUSD, limit, snap.LookbackHours),
		Details:   map[string]any{"cost_usd": snap.CostUSD, "threshold_usd": limit, "total_calls": snap.TotalCalls},
		Timestamp: now,
	}, true
}

// SendAlerts posts all alerts to the webhook in one notification and
// returns how many were delivered: all of them or none.
func (a *Alerter) SendAlerts(ctx context.Context, lookbackHours int, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}
	n := Notification{
		Service:       "control-assist",
		LookbackHours: lookbackHours,
		Alerts:        alerts,
		SentAt:        time.Now().UTC(),
	}
	if err := a.post(ctx, n); err != nil {
		zap.L().Error("monitoring: alert delivery failed",
			zap.Int("alerts", len(alerts)),
			zap.Error(err),
		)
		return 0
	}
	zap.L().Info("monitoring: alerts delivered", zap.Int("alerts", len(alerts)))
	return len(alerts)
}

func (a *Alerter) post(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return eris.Wrap(err, "monitoring: encode notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
