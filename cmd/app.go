package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/control-assist/internal/batch"
	"github.com/sells-group/control-assist/internal/config"
	"github.com/sells-group/control-assist/internal/cost"
	"github.com/sells-group/control-assist/internal/generate"
	"github.com/sells-group/control-assist/internal/store"
	"github.com/sells-group/control-assist/internal/suggest"
	"github.com/sells-group/control-assist/internal/telemetry"
)

// appEnv holds everything the suggest, batch and serve commands need.
type appEnv struct {
	Store    store.Store // nil when the store driver is "none"
	Sink     *telemetry.Async
	Selector *suggest.Selector
	Runner   *batch.Runner
	Source   config.ProviderSource
	Registry *prometheus.Registry

	closers []func() error
}

// Close flushes telemetry and releases the store.
func (e *appEnv) Close() {
	if e.Sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.Sink.Close(ctx); err != nil {
			zap.L().Warn("telemetry: flush incomplete", zap.Error(err), zap.Int64("dropped", e.Sink.Dropped()))
		}
		cancel()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

// initApp wires the store, telemetry sinks, orchestrator and selector.
// Callers should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	env := &appEnv{
		Source:   config.FileSource{Path: configPath},
		Registry: prometheus.NewRegistry(),
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st != nil {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		env.Store = st
		env.closers = append(env.closers, st.Close)
	}

	catalog, err := loadCatalog()
	if err != nil {
		env.Close()
		return nil, err
	}

	var sink telemetry.Sink = telemetry.Nop{}
	if cfg.Telemetry.Enabled {
		sinks := telemetry.Multi{}
		if p := cfg.Telemetry.EventLog.Path; p != "" {
			logSink := telemetry.NewFileLogSink(telemetry.FileConfig{
				Path:       p,
				MaxSizeMB:  cfg.Telemetry.EventLog.MaxSizeMB,
				MaxBackups: cfg.Telemetry.EventLog.MaxBackups,
				MaxAgeDays: cfg.Telemetry.EventLog.MaxAgeDays,
				Compress:   cfg.Telemetry.EventLog.Compress,
			})
			env.closers = append(env.closers, logSink.Close)
			sinks = append(sinks, logSink)
		} else {
			sinks = append(sinks, telemetry.NewLogSink(zap.L().Named("generation")))
		}
		if cfg.Telemetry.Metrics {
			sinks = append(sinks, telemetry.NewMetricsSink(env.Registry))
		}
		if env.Store != nil {
			sinks = append(sinks, telemetry.NewStoreSink(env.Store))
		}
		env.Sink = telemetry.NewAsync(sinks, cfg.Telemetry.Buffer)
		sink = env.Sink
	}

	orch := generate.NewOrchestrator(
		generate.NewClientFactory(cfg.Capabilities.CloudConverse),
		generate.WithSink(sink),
		generate.WithCalculator(cost.NewCalculator(cfg.Pricing)),
	)
	env.Selector = suggest.NewSelector(orch, catalog)
	env.Runner = batch.NewRunner(env.Selector, env.Source,
		batch.WithDelay(time.Duration(cfg.Batch.DelayMs)*time.Millisecond))

	zap.L().Info("control-assist ready",
		zap.String("store", cfg.Store.Driver),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
		zap.Bool("cloud_converse", cfg.Capabilities.CloudConverse),
	)
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case config.DriverPostgres:
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	case config.DriverNone:
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func loadCatalog() (*suggest.Catalog, error) {
	if cfg.Suggest.CatalogPath != "" {
		return suggest.LoadCatalog(cfg.Suggest.CatalogPath)
	}
	return suggest.DefaultCatalog()
}
