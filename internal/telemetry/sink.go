// Package telemetry delivers generation events to logs, metrics and the
// event store. Delivery is best effort: sinks never influence the outcome
// of a generation.
package telemetry

import (
	"context"
	"errors"

	"github.com/sells-group/control-assist/internal/model"
)

// Sink receives one event per provider call.
type Sink interface {
	Record(ctx context.Context, ev model.GenerationEvent) error
}

// Nop discards every event.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(context.Context, model.GenerationEvent) error { return nil }

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev model.GenerationEvent) error

// Record implements Sink.
func (f SinkFunc) Record(ctx context.Context, ev model.GenerationEvent) error { return f(ctx, ev) }

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, ev model.GenerationEvent) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
