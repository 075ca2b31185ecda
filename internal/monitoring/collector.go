// Package monitoring raises alerts when text-generation providers degrade.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/control-assist/internal/model"
	"github.com/sells-group/control-assist/internal/store"
)

// ProviderHealth is the windowed health of one provider and model.
type ProviderHealth struct {
	Provider     model.ProviderKind `json:"provider"`
	Model        string             `json:"model"`
	Calls        int64              `json:"calls"`
	Errors       int64              `json:"errors"`
	ErrorRate    float64            `json:"error_rate"`
	AvgLatencyMs float64            `json:"avg_latency_ms"`
	CostUSD      float64            `json:"cost_usd"`
}

// MetricsSnapshot holds a point-in-time view of generation health.
type MetricsSnapshot struct {
	Providers   []ProviderHealth `json:"providers"`
	TotalCalls  int64            `json:"total_calls"`
	TotalErrors int64            `json:"total_errors"`
	CostUSD     float64          `json:"cost_usd"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// StatsQuerier is the part of store.Store the collector reads.
type StatsQuerier interface {
	GenerationStats(ctx context.Context, since time.Time) ([]store.ProviderStats, error)
}

// Collector gathers generation metrics from the event store.
type Collector struct {
	store StatsQuerier
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st StatsQuerier) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	stats, err := c.store.GenerationStats(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: generation stats")
	}

	for _, s := range stats {
		h := ProviderHealth{
			Provider:     s.Provider,
			Model:        s.Model,
			Calls:        s.Calls,
			Errors:       s.Errors,
			AvgLatencyMs: s.AvgLatencyMs,
			CostUSD:      s.CostUSD,
		}
		if s.Calls > 0 {
			h.ErrorRate = float64(s.Errors) / float64(s.Calls)
		}
		snap.Providers = append(snap.Providers, h)
		snap.TotalCalls += s.Calls
		snap.TotalErrors += s.Errors
		snap.CostUSD += s.CostUSD
	}
	return snap, nil
}
