package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/control-assist/internal/cost"
	"github.com/sells-group/control-assist/internal/model"
	"github.com/sells-group/control-assist/internal/store"
)

// EnvPrefix prefixes every environment override, e.g.
// CONTROL_ASSIST_PROVIDER_CHAT_API_KEY.
const EnvPrefix = "CONTROL_ASSIST"

// Config holds the full application configuration.
type Config struct {
	Log          LogConfig            `yaml:"log" mapstructure:"log"`
	Server       ServerConfig         `yaml:"server" mapstructure:"server"`
	Store        StoreConfig          `yaml:"store" mapstructure:"store"`
	Batch        BatchConfig          `yaml:"batch" mapstructure:"batch"`
	Telemetry    TelemetryConfig      `yaml:"telemetry" mapstructure:"telemetry"`
	Suggest      SuggestConfig        `yaml:"suggest" mapstructure:"suggest"`
	Pricing      cost.Rates           `yaml:"pricing" mapstructure:"pricing"`
	Provider     model.ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Capabilities CapabilitiesConfig   `yaml:"capabilities" mapstructure:"capabilities"`
	Monitoring   MonitoringConfig     `yaml:"monitoring" mapstructure:"monitoring"`
}

// MonitoringConfig configures provider health alerts computed from the
// generation event store.
type MonitoringConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	ErrorRateThreshold  float64 `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
	MinCalls            int     `yaml:"min_calls" mapstructure:"min_calls"`
	LatencyThresholdMs  float64 `yaml:"latency_threshold_ms" mapstructure:"latency_threshold_ms"`
	CostThresholdUSD    float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// StoreConfig configures the generation event store.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// BatchConfig configures batch processing.
type BatchConfig struct {
	DelayMs int `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// ServerConfig configures the HTTP server. A zero RateLimitRPS disables
// request throttling on the API routes.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
	RateLimitRPS        float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst      int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// TelemetryConfig configures generation event sinks.
type TelemetryConfig struct {
	Enabled  bool           `yaml:"enabled" mapstructure:"enabled"`
	Buffer   int            `yaml:"buffer" mapstructure:"buffer"`
	Metrics  bool           `yaml:"metrics" mapstructure:"metrics"`
	EventLog EventLogConfig `yaml:"event_log" mapstructure:"event_log"`
}

// EventLogConfig configures the rotating JSON event log. An empty Path
// disables it.
type EventLogConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// SuggestConfig configures the strategy selector. An empty CatalogPath uses
// the built-in templates.
type SuggestConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// CapabilitiesConfig declares optional runtime capabilities. It is read
// once at startup.
type CapabilitiesConfig struct {
	CloudConverse bool `yaml:"cloud_converse" mapstructure:"cloud_converse"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (optional) and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or from ./config.yaml when path is
// empty. A missing default file is not an error; a missing explicit path is.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if len(cfg.Pricing.Providers) == 0 {
		cfg.Pricing = cost.DefaultRates()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.database_url", "control-assist.db")
	v.SetDefault("store.pool.max_conns", 4)
	v.SetDefault("store.pool.min_conns", 1)
	v.SetDefault("batch.delay_ms", 500)
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.buffer", 256)
	v.SetDefault("telemetry.metrics", true)
	v.SetDefault("telemetry.event_log.path", "")
	v.SetDefault("telemetry.event_log.max_size_mb", 50)
	v.SetDefault("telemetry.event_log.max_backups", 5)
	v.SetDefault("telemetry.event_log.max_age_days", 30)
	v.SetDefault("telemetry.event_log.compress", true)
	v.SetDefault("suggest.catalog_path", "")
	v.SetDefault("capabilities.cloud_converse", false)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.error_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_calls", 5)
	v.SetDefault("monitoring.latency_threshold_ms", 60000)
	v.SetDefault("monitoring.cost_threshold_usd", 0)

	v.SetDefault("provider.enabled", true)
	v.SetDefault("provider.provider", string(model.ProviderLocal))
	v.SetDefault("provider.local.base_url", "http://localhost:11434")
	v.SetDefault("provider.local.model", "llama3.1")
	v.SetDefault("provider.chat.base_url", "https://api.openai.com/v1")
	v.SetDefault("provider.chat.api_key", "")
	v.SetDefault("provider.chat.model", "gpt-4o-mini")
	v.SetDefault("provider.converse.api_key", "")
	v.SetDefault("provider.converse.region", "")
	v.SetDefault("provider.converse.model", "claude-haiku-4-5-20251001")
	v.SetDefault("provider.timeout_secs", 300)
	v.SetDefault("provider.max_retries", 2)
	v.SetDefault("provider.fallback_to_pattern_matching", true)
	v.SetDefault("provider.temperature", 0.3)
	v.SetDefault("provider.top_p", 0.9)
	v.SetDefault("provider.max_tokens", 200)
	v.SetDefault("provider.max_style_examples", 25)
	v.SetDefault("provider.max_chars", 0)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "console":
	default:
		return eris.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return eris.Errorf("config: store.database_url is required for driver %s", c.Store.Driver)
		}
	case DriverNone:
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 0 {
		return eris.New("config: server.rate_limit_rps must not be negative")
	}
	if c.Batch.DelayMs < 0 {
		return eris.New("config: batch.delay_ms must not be negative")
	}
	if t := c.Monitoring.ErrorRateThreshold; t < 0 || t > 1 {
		return eris.Errorf("config: monitoring.error_rate_threshold %.2f out of range [0, 1]", t)
	}
	return ValidateProvider(c.Provider)
}

// ValidateProvider checks ranges in a provider configuration. Credentials
// are not checked here; a missing key surfaces as a configuration error at
// generation time and falls through to pattern matching.
func ValidateProvider(p model.ProviderConfig) error {
	switch p.Provider {
	case model.ProviderLocal, model.ProviderCloudChat, model.ProviderCloudConverse:
	default:
		return eris.Errorf("config: unknown provider.provider %q", p.Provider)
	}
	if p.MaxRetries < 0 {
		return eris.New("config: provider.max_retries must not be negative")
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return eris.Errorf("config: provider.temperature %.2f out of range [0, 2]", p.Temperature)
	}
	if p.TopP < 0 || p.TopP > 1 {
		return eris.Errorf("config: provider.top_p %.2f out of range [0, 1]", p.TopP)
	}
	if p.MaxChars < 0 {
		return eris.New("config: provider.max_chars must not be negative")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
