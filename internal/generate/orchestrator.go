package generate

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sells-group/control-assist/internal/cost"
	"github.com/sells-group/control-assist/internal/model"
	"github.com/sells-group/control-assist/internal/normalize"
	"github.com/sells-group/control-assist/internal/resilience"
	"github.com/sells-group/control-assist/internal/telemetry"
)

// MinAcceptedLength is the exclusive lower bound on normalized text length
// for a provider response to be accepted.
const MinAcceptedLength = 50

// secondaryMaxRetries is the retry budget of the local secondary provider.
const secondaryMaxRetries = 1

// Operation names the telemetry operation for implementation generation.
const Operation = "generate_implementation"

var tracer = otel.Tracer("control-assist/generate")

// Orchestrator runs the provider fallback chain: primary provider with
// bounded retries, then the local provider when the primary is a cloud
// provider, then the caller's fallback text.
type Orchestrator struct {
	factory     Factory
	sink        telemetry.Sink
	calc        *cost.Calculator
	backoffStep time.Duration
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSink sets the telemetry sink. Sink errors never affect generation.
func WithSink(s telemetry.Sink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sink = s
		}
	}
}

// WithCalculator sets the cost calculator used for telemetry events.
func WithCalculator(c *cost.Calculator) Option {
	return func(o *Orchestrator) { o.calc = c }
}

// WithBackoffStep sets the linear backoff step (default 1s). Retry n
// waits step × n.
func WithBackoffStep(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.backoffStep = d
		}
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(factory Factory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		factory:     factory,
		sink:        telemetry.Nop{},
		backoffStep: time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Generate produces an implementation text for control. The returned error
// is non-nil only when every provider failed and cfg disables pattern
// fallback; it is then the last provider error.
func (o *Orchestrator) Generate(ctx context.Context, control model.Control, cfg model.ProviderConfig, existing []model.ExistingControl, fallbackText string) (*model.GenerationResult, error) {
	if !cfg.Enabled {
		return &model.GenerationResult{Text: fallbackText}, nil
	}

	log := zap.L().With(zap.String("control_id", control.ID), zap.String("provider", string(cfg.Provider)))
	req := Request{
		System:      SystemPrompt,
		Prompt:      BuildPrompt(control, existing, cfg.MaxStyleExamples),
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxTokens,
	}

	st := &chainState{}

	text, err := o.attempt(ctx, st, cfg.Provider, cfg, cfg.MaxRetries, control.ID, req)
	if err == nil {
		return o.accepted(text, cfg), nil
	}
	log.Warn("generate: primary provider failed", zap.Error(err))

	if !isConfigError(err) && cfg.Provider.IsCloud() {
		text, secErr := o.attempt(ctx, st, model.ProviderLocal, cfg, secondaryMaxRetries, control.ID, req)
		if secErr == nil {
			return o.accepted(text, cfg), nil
		}
		log.Warn("generate: secondary provider failed", zap.Error(secErr))
		// A misconfigured secondary never ran; report the primary failure.
		if !isConfigError(secErr) {
			err = secErr
		}
	}

	if !cfg.FallbackToPatternMatching {
		return nil, err
	}

	log.Info("generate: using pattern fallback", zap.Int("provider_calls", st.calls))
	return &model.GenerationResult{
		Text:         fallbackText,
		Attempted:    st.calls > 0,
		Provider:     st.last,
		UsedFallback: true,
		Error:        err.Error(),
	}, nil
}

// chainState tracks provider calls across the fallback chain.
type chainState struct {
	calls int
	last  model.ProviderKind
}

type acceptedText struct {
	text     string
	provider model.ProviderKind
}

func (o *Orchestrator) accepted(a acceptedText, cfg model.ProviderConfig) *model.GenerationResult {
	return &model.GenerationResult{
		Text:      normalize.Truncate(a.text, cfg.MaxChars),
		Generated: true,
		Attempted: true,
		Provider:  a.provider,
	}
}

// attempt runs one provider with maxRetries+1 calls and linear backoff.
func (o *Orchestrator) attempt(ctx context.Context, st *chainState, kind model.ProviderKind, cfg model.ProviderConfig, maxRetries int, controlID string, req Request) (acceptedText, error) {
	p, err := o.factory.Provider(ctx, kind, cfg)
	if err != nil {
		return acceptedText{}, err
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	rc := resilience.RetryConfig{
		MaxAttempts: maxRetries + 1,
		Backoff:     resilience.LinearBackoff(o.backoffStep),
		ShouldRetry: func(err error) bool { return !isConfigError(err) },
		OnRetry:     resilience.RetryLogger(string(kind), Operation),
	}
	return resilience.DoVal(ctx, rc, func(ctx context.Context, attempt int) (acceptedText, error) {
		st.calls++
		st.last = kind
		text, err := o.call(ctx, p, controlID, attempt, req)
		if err != nil {
			return acceptedText{}, err
		}
		return acceptedText{text: text, provider: kind}, nil
	})
}

// call performs a single provider call, validates the normalized response
// and reports the attempt to the telemetry sink.
func (o *Orchestrator) call(ctx context.Context, p Provider, controlID string, attempt int, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.call", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.provider", string(p.Kind())),
		attribute.String("llm.model", p.Model()),
		attribute.String("control.id", controlID),
		attribute.Int("attempt", attempt),
	)

	start := o.now()
	resp, err := p.Generate(ctx, req)
	latency := o.now().Sub(start)

	var text string
	if err == nil {
		text = normalize.Normalize(resp.Text)
		if n := utf8.RuneCountInString(text); n <= MinAcceptedLength {
			err = &ShortResponseError{Length: n, Min: MinAcceptedLength}
		}
	}
	err = classify(err, p.Kind(), p.Endpoint())

	o.record(ctx, p, controlID, attempt, req, resp, latency, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	span.SetStatus(codes.Ok, "")
	return text, nil
}

func (o *Orchestrator) record(ctx context.Context, p Provider, controlID string, attempt int, req Request, resp *Response, latency time.Duration, callErr error) {
	ev := model.GenerationEvent{
		ID:        uuid.NewString(),
		Provider:  p.Kind(),
		Model:     p.Model(),
		Operation: Operation,
		ControlID: controlID,
		Attempt:   attempt,
		Prompt:    req.Prompt,
		LatencyMs: latency.Milliseconds(),
		Status:    model.EventSuccess,
		CreatedAt: o.now().UTC(),
	}
	ev.PromptTokens = cost.EstimateTokens(req.System + "\n" + req.Prompt)
	if resp != nil {
		ev.Response = resp.Text
		ev.ResponseTokens = cost.EstimateTokens(resp.Text)
		if resp.PromptTokens > 0 {
			ev.PromptTokens = resp.PromptTokens
		}
		if resp.ResponseTokens > 0 {
			ev.ResponseTokens = resp.ResponseTokens
		}
		if resp.Model != "" {
			ev.Model = resp.Model
		}
	}
	ev.CostUSD = o.calc.Generation(string(ev.Provider), ev.Model, ev.PromptTokens, ev.ResponseTokens)
	if callErr != nil {
		ev.Status = model.EventError
		ev.Error = callErr.Error()
	}

	if err := o.sink.Record(ctx, ev); err != nil {
		zap.L().Debug("generate: telemetry sink failed", zap.Error(err))
	}
}
