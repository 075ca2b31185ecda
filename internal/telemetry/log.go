package telemetry

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sells-group/control-assist/internal/model"
)

// FileConfig configures the rotating event log.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// LogSink writes events as structured log entries.
type LogSink struct {
	logger *zap.Logger
	closer func() error
}

// NewLogSink writes events to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger, closer: func() error { return nil }}
}

// NewFileLogSink writes events as JSON lines to a rotating file.
func NewFileLogSink(cfg FileConfig) *LogSink {
	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), zapcore.InfoLevel)

	logger := zap.New(core)
	return &LogSink{
		logger: logger,
		closer: func() error {
			_ = logger.Sync()
			return rotator.Close()
		},
	}
}

// Record implements Sink.
func (s *LogSink) Record(_ context.Context, ev model.GenerationEvent) error {
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("provider", string(ev.Provider)),
		zap.String("model", ev.Model),
		zap.String("operation", ev.Operation),
		zap.String("control_id", ev.ControlID),
		zap.Int("attempt", ev.Attempt),
		zap.Int("prompt_chars", len(ev.Prompt)),
		zap.Int("response_chars", len(ev.Response)),
		zap.Int("prompt_tokens", ev.PromptTokens),
		zap.Int("response_tokens", ev.ResponseTokens),
		zap.Float64("cost_usd", ev.CostUSD),
		zap.Int64("latency_ms", ev.LatencyMs),
		zap.String("status", string(ev.Status)),
	}
	if ev.Status == model.EventError {
		s.logger.Warn("generation attempt failed", append(fields, zap.String("error", ev.Error))...)
		return nil
	}
	s.logger.Info("generation attempt", fields...)
	return nil
}

// Close flushes and closes the underlying file, if any.
func (s *LogSink) Close() error {
	return s.closer()
}
