package generate

import (
	"context"
	"strings"

	"github.com/sells-group/control-assist/internal/model"
	"github.com/sells-group/control-assist/pkg/anthropic"
	"github.com/sells-group/control-assist/pkg/ollama"
	"github.com/sells-group/control-assist/pkg/openai"
)

// Default endpoints reported in diagnostics when the config leaves them blank.
const (
	defaultLocalURL    = "http://localhost:11434"
	defaultChatURL     = "https://api.openai.com/v1"
	defaultConverseURL = "https://api.anthropic.com"
)

// Factory builds a provider of the given kind from the per-call config.
type Factory interface {
	Provider(ctx context.Context, kind model.ProviderKind, cfg model.ProviderConfig) (Provider, error)
}

// ClientFactory builds providers backed by the real API clients.
type ClientFactory struct {
	// ConverseAvailable is resolved once at startup. When false the
	// cloud-converse provider is reported as a configuration error.
	ConverseAvailable bool
}

// NewClientFactory creates a ClientFactory.
func NewClientFactory(converseAvailable bool) *ClientFactory {
	return &ClientFactory{ConverseAvailable: converseAvailable}
}

// Provider implements Factory.
func (f *ClientFactory) Provider(ctx context.Context, kind model.ProviderKind, cfg model.ProviderConfig) (Provider, error) {
	timeout := cfg.Timeout()

	switch kind {
	case model.ProviderLocal:
		endpoint := firstNonEmpty(cfg.Local.BaseURL, defaultLocalURL)
		if strings.TrimSpace(cfg.Local.Model) == "" {
			return nil, &ConfigError{Provider: kind, Reason: "provider.local.model is required"}
		}
		client := ollama.NewClient(
			ollama.WithBaseURL(endpoint),
			ollama.WithModel(cfg.Local.Model),
			ollama.WithTimeout(timeout),
		)
		return NewLocalProvider(client, cfg.Local.Model, endpoint), nil

	case model.ProviderCloudChat:
		if strings.TrimSpace(cfg.Chat.APIKey) == "" {
			return nil, &ConfigError{Provider: kind, Reason: "provider.chat.api_key is required"}
		}
		if strings.TrimSpace(cfg.Chat.Model) == "" {
			return nil, &ConfigError{Provider: kind, Reason: "provider.chat.model is required"}
		}
		endpoint := firstNonEmpty(cfg.Chat.BaseURL, defaultChatURL)
		client := openai.NewClient(cfg.Chat.APIKey,
			openai.WithBaseURL(endpoint),
			openai.WithModel(cfg.Chat.Model),
			openai.WithTimeout(timeout),
		)
		return NewChatProvider(client, cfg.Chat.Model, endpoint), nil

	case model.ProviderCloudConverse:
		if !f.ConverseAvailable {
			return nil, &ConfigError{Provider: kind, Reason: "converse support is disabled in this deployment"}
		}
		if strings.TrimSpace(cfg.Converse.Model) == "" {
			return nil, &ConfigError{Provider: kind, Reason: "provider.converse.model is required"}
		}
		if region := strings.TrimSpace(cfg.Converse.Region); region != "" {
			client, err := anthropic.NewBedrockClient(ctx, region, timeout)
			if err != nil {
				return nil, &ConfigError{Provider: kind, Reason: "aws credentials for provider.converse.region: " + err.Error()}
			}
			endpoint := "bedrock-runtime." + region + ".amazonaws.com"
			return NewConverseProvider(client, cfg.Converse.Model, endpoint), nil
		}
		if strings.TrimSpace(cfg.Converse.APIKey) == "" {
			return nil, &ConfigError{Provider: kind, Reason: "provider.converse.api_key or provider.converse.region is required"}
		}
		return NewConverseProvider(anthropic.NewClient(cfg.Converse.APIKey, timeout), cfg.Converse.Model, defaultConverseURL), nil

	default:
		return nil, &ConfigError{Provider: kind, Reason: "unknown provider identifier"}
	}
}
