package store

import (
	"context"
	"time"

	"github.com/sells-group/control-assist/internal/model"
)

// DefaultListLimit caps ListGenerations when the filter sets no limit.
const DefaultListLimit = 100

// EventFilter specifies criteria for listing generation events.
type EventFilter struct {
	Provider  model.ProviderKind `json:"provider,omitempty"`
	ControlID string             `json:"control_id,omitempty"`
	Status    model.EventStatus  `json:"status,omitempty"`
	Since     time.Time          `json:"since,omitempty"`
	Limit     int                `json:"limit,omitempty"`
	Offset    int                `json:"offset,omitempty"`
}

func (f EventFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// ProviderStats summarises events for one provider and model.
type ProviderStats struct {
	Provider     model.ProviderKind `json:"provider"`
	Model        string             `json:"model"`
	Calls        int64              `json:"calls"`
	Errors       int64              `json:"errors"`
	AvgLatencyMs float64            `json:"avg_latency_ms"`
	CostUSD      float64            `json:"cost_usd"`
}

// Store persists generation telemetry. Suggestions themselves are never
// stored.
type Store interface {
	RecordGeneration(ctx context.Context, ev model.GenerationEvent) error
	ListGenerations(ctx context.Context, filter EventFilter) ([]model.GenerationEvent, error)
	GenerationStats(ctx context.Context, since time.Time) ([]ProviderStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
