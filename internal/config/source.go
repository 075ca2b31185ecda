package config

import (
	"context"

	"github.com/sells-group/control-assist/internal/model"
)

// ProviderSource supplies the provider configuration for one pipeline call.
type ProviderSource interface {
	ProviderConfig(ctx context.Context) (model.ProviderConfig, error)
}

// FileSource re-reads the configuration file and environment on every
// call, so edits take effect without a restart.
type FileSource struct {
	Path string
}

// ProviderConfig implements ProviderSource.
func (s FileSource) ProviderConfig(ctx context.Context) (model.ProviderConfig, error) {
	if err := ctx.Err(); err != nil {
		return model.ProviderConfig{}, err
	}
	cfg, err := LoadFile(s.Path)
	if err != nil {
		return model.ProviderConfig{}, err
	}
	return cfg.Provider, nil
}

// Static always returns the same configuration.
type Static model.ProviderConfig

// ProviderConfig implements ProviderSource.
func (s Static) ProviderConfig(context.Context) (model.ProviderConfig, error) {
	return model.ProviderConfig(s), nil
}
