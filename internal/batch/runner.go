// Package batch runs the suggestion pipeline over a list of controls.
package batch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/control-assist/internal/model"
)

// DefaultDelay is the pause between consecutive controls.
const DefaultDelay = 500 * time.Millisecond

// Selector produces a suggestion for one control.
type Selector interface {
	Select(ctx context.Context, control model.Control, existing []model.ExistingControl, cfg model.ProviderConfig) (*model.Suggestion, error)
}

// ConfigSource supplies the provider configuration for a single call.
type ConfigSource interface {
	ProviderConfig(ctx context.Context) (model.ProviderConfig, error)
}

// Result is the outcome for one control. Exactly one of Suggestion and
// Error is set.
type Result struct {
	ControlID  string            `json:"control_id"`
	Suggestion *model.Suggestion `json:"suggestion,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMs int64             `json:"duration_ms"`
}

// Summary counts batch outcomes.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Generated int `json:"generated"`
}

// Summarize tallies results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Error != "":
			s.Failed++
		case r.Suggestion != nil:
			s.Succeeded++
			if r.Suggestion.Source == model.SourceAI {
				s.Generated++
			}
		}
	}
	return s
}

// Runner processes controls one at a time.
type Runner struct {
	selector Selector
	source   ConfigSource
	delay    time.Duration
	wait     func(ctx context.Context, d time.Duration) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithDelay sets the pause between controls. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.delay = d
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(selector Selector, source ConfigSource, opts ...Option) *Runner {
	r := &Runner{
		selector: selector,
		source:   source,
		delay:    DefaultDelay,
		wait:     sleep,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run produces one Result per control, in input order. The provider
// configuration is reloaded before each control so edits apply mid-batch.
// A failing control is recorded and the batch continues; only context
// cancellation stops it early, in which case the remaining controls are
// reported as cancelled.
func (r *Runner) Run(ctx context.Context, controls []model.Control, existing []model.ExistingControl) []Result {
	results := make([]Result, 0, len(controls))

	zap.L().Info("batch: starting",
		zap.Int("controls", len(controls)),
		zap.Duration("delay", r.delay),
	)

	for i, c := range controls {
		if i > 0 && r.delay > 0 {
			if err := r.wait(ctx, r.delay); err != nil {
				return cancelRest(results, controls[i:], err)
			}
		}
		if err := ctx.Err(); err != nil {
			return cancelRest(results, controls[i:], err)
		}
		results = append(results, r.one(ctx, c, existing))
	}

	s := Summarize(results)
	zap.L().Info("batch: complete",
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Int("generated", s.Generated),
	)
	return results
}

func (r *Runner) one(ctx context.Context, c model.Control, existing []model.ExistingControl) Result {
	start := time.Now()
	log := zap.L().With(zap.String("control_id", c.ID))

	res := Result{ControlID: c.ID}
	cfg, err := r.source.ProviderConfig(ctx)
	if err != nil {
		err = eris.Wrap(err, "batch: load provider config")
	} else {
		res.Suggestion, err = r.selector.Select(ctx, c, existing, cfg)
		if err == nil && res.Suggestion == nil {
			err = eris.New("batch: selector returned no suggestion")
		}
	}
	res.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		res.Suggestion = nil
		res.Error = err.Error()
		log.Error("batch: control failed", zap.Error(err))
		return res
	}
	log.Debug("batch: control complete",
		zap.String("source", string(res.Suggestion.Source)),
		zap.Float64("confidence", res.Suggestion.Confidence),
	)
	return res
}

func cancelRest(results []Result, rest []model.Control, err error) []Result {
	for _, c := range rest {
		results = append(results, Result{ControlID: c.ID, Error: eris.Wrap(err, "batch: cancelled").Error()})
	}
	zap.L().Warn("batch: cancelled", zap.Int("skipped", len(rest)), zap.Error(err))
	return results
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
