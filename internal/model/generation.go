package model

import "time"

// ProviderKind identifies a text-generation backend.
type ProviderKind string

// Supported provider kinds.
const (
	ProviderLocal         ProviderKind = "local"
	ProviderCloudChat     ProviderKind = "cloud-chat"
	ProviderCloudConverse ProviderKind = "cloud-converse"
)

// IsCloud reports whether the provider is a remote hosted service.
func (k ProviderKind) IsCloud() bool {
	return k == ProviderCloudChat || k == ProviderCloudConverse
}

// LocalProviderConfig configures the local inference endpoint.
type LocalProviderConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url" json:"base_url"`
	Model   string `yaml:"model" mapstructure:"model" json:"model"`
}

// ChatProviderConfig configures the cloud chat-completion endpoint.
type ChatProviderConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url" json:"base_url,omitempty"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key" json:"-"`
	Model   string `yaml:"model" mapstructure:"model" json:"model"`
}

// ConverseProviderConfig configures the cloud converse endpoint. Region
// selects region/credential based auth; otherwise APIKey is used.
type ConverseProviderConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key" json:"-"`
	Region string `yaml:"region" mapstructure:"region" json:"region,omitempty"`
	Model  string `yaml:"model" mapstructure:"model" json:"model"`
}

// ProviderConfig controls text generation for a single pipeline call. It is
// re-read from the configuration source on every call.
type ProviderConfig struct {
	Enabled                   bool                   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Provider                  ProviderKind           `yaml:"provider" mapstructure:"provider" json:"provider"`
	Local                     LocalProviderConfig    `yaml:"local" mapstructure:"local" json:"local"`
	Chat                      ChatProviderConfig     `yaml:"chat" mapstructure:"chat" json:"chat"`
	Converse                  ConverseProviderConfig `yaml:"converse" mapstructure:"converse" json:"converse"`
	TimeoutSecs               int                    `yaml:"timeout_secs" mapstructure:"timeout_secs" json:"timeout_secs"`
	MaxRetries                int                    `yaml:"max_retries" mapstructure:"max_retries" json:"max_retries"`
	FallbackToPatternMatching bool                   `yaml:"fallback_to_pattern_matching" mapstructure:"fallback_to_pattern_matching" json:"fallback_to_pattern_matching"`
	Temperature               float64                `yaml:"temperature" mapstructure:"temperature" json:"temperature"`
	TopP                      float64                `yaml:"top_p" mapstructure:"top_p" json:"top_p"`
	MaxTokens                 int                    `yaml:"max_tokens" mapstructure:"max_tokens" json:"max_tokens"`
	MaxStyleExamples          int                    `yaml:"max_style_examples" mapstructure:"max_style_examples" json:"max_style_examples"`
	MaxChars                  int                    `yaml:"max_chars" mapstructure:"max_chars" json:"max_chars"`
}

// Timeout returns the per-call provider timeout.
func (c ProviderConfig) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// GenerationResult reports what the provider orchestrator did. Generated is
// true only when a remote provider produced the returned text.
type GenerationResult struct {
	Text         string       `json:"text,omitempty"`
	Generated    bool         `json:"generated"`
	Attempted    bool         `json:"attempted"`
	Provider     ProviderKind `json:"provider,omitempty"`
	UsedFallback bool         `json:"used_fallback"`
	Error        string       `json:"error,omitempty"`
}
