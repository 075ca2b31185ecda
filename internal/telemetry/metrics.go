package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/control-assist/internal/model"
)

// MetricsSink records events as Prometheus metrics.
type MetricsSink struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
	costUSD  *prometheus.CounterVec
}

// NewMetricsSink registers the generation metrics on reg.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	f := promauto.With(reg)
	return &MetricsSink{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "control_assist_generation_requests_total",
			Help: "Total provider calls by provider, model and status",
		}, []string{"provider", "model", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "control_assist_generation_request_duration_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"provider", "model"}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Name: "control_assist_generation_tokens_total",
			Help: "Tokens consumed by provider calls",
		}, []string{"provider", "model", "direction"}),
		costUSD: f.NewCounterVec(prometheus.CounterOpts{
			Name: "control_assist_generation_cost_usd_total",
			Help: "Estimated provider spend in USD",
		}, []string{"provider", "model"}),
	}
}

// Record implements Sink.
func (m *MetricsSink) Record(_ context.Context, ev model.GenerationEvent) error {
	provider := string(ev.Provider)
	m.requests.WithLabelValues(provider, ev.Model, string(ev.Status)).Inc()
	m.duration.WithLabelValues(provider, ev.Model).Observe((time.Duration(ev.LatencyMs) * time.Millisecond).Seconds())
	m.tokens.WithLabelValues(provider, ev.Model, "input").Add(float64(ev.PromptTokens))
	m.tokens.WithLabelValues(provider, ev.Model, "output").Add(float64(ev.ResponseTokens))
	if ev.CostUSD > 0 {
		m.costUSD.WithLabelValues(provider, ev.Model).Add(ev.CostUSD)
	}
	return nil
}
