package telemetry

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/control-assist/internal/model"
)

// EventRecorder persists generation events.
type EventRecorder interface {
	RecordGeneration(ctx context.Context, ev model.GenerationEvent) error
}

// StoreSink writes events to an EventRecorder.
type StoreSink struct {
	rec EventRecorder
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(rec EventRecorder) *StoreSink {
	return &StoreSink{rec: rec}
}

// Record implements Sink.
func (s *StoreSink) Record(ctx context.Context, ev model.GenerationEvent) error {
	if err := s.rec.RecordGeneration(ctx, ev); err != nil {
		return eris.Wrapf(err, "telemetry: store event %s", ev.ID)
	}
	return nil
}
