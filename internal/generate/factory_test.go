package generate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/control-assist/internal/model"
)

func TestClientFactory_Provider(t *testing.T) {
	base := model.ProviderConfig{
		Local:    model.LocalProviderConfig{BaseURL: "http://ollama:11434", Model: "llama3.1"},
		Chat:     model.ChatProviderConfig{APIKey: "sk-test", Model: "gpt-4o-mini"},
		Converse: model.ConverseProviderConfig{APIKey: "ak-test", Model: "claude-haiku-4-5-20251001"},
	}

	tests := []struct {
		name       string
		kind       model.ProviderKind
		converse   bool
		mutate     func(*model.ProviderConfig)
		wantErr    string
		wantKind   model.ProviderKind
		wantTarget string
	}{
		{name: "local", kind: model.ProviderLocal, wantKind: model.ProviderLocal, wantTarget: "http://ollama:11434"},
		{
			name: "local default endpoint", kind: model.ProviderLocal,
			mutate:   func(c *model.ProviderConfig) { c.Local.BaseURL = "" },
			wantKind: model.ProviderLocal, wantTarget: defaultLocalURL,
		},
		{
			name: "local without model", kind: model.ProviderLocal,
			mutate:  func(c *model.ProviderConfig) { c.Local.Model = "" },
			wantErr: "provider.local.model is required",
		},
		{name: "chat", kind: model.ProviderCloudChat, wantKind: model.ProviderCloudChat, wantTarget: defaultChatURL},
		{
			name: "chat without key", kind: model.ProviderCloudChat,
			mutate:  func(c *model.ProviderConfig) { c.Chat.APIKey = " " },
			wantErr: "provider.chat.api_key is required",
		},
		{
			name: "converse unavailable", kind: model.ProviderCloudConverse, converse: false,
			wantErr: "converse support is disabled",
		},
		{
			name: "converse api key", kind: model.ProviderCloudConverse, converse: true,
			wantKind: model.ProviderCloudConverse, wantTarget: defaultConverseURL,
		},
		{
			name: "converse without credentials", kind: model.ProviderCloudConverse, converse: true,
			mutate:  func(c *model.ProviderConfig) { c.Converse.APIKey = "" },
			wantErr: "api_key or provider.converse.region is required",
		},
		{name: "unknown", kind: "mainframe", wantErr: "unknown provider identifier"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			p, err := NewClientFactory(tt.converse).Provider(context.Background(), tt.kind, cfg)
			if tt.wantErr != "" {
				var ce *ConfigError
				require.ErrorAs(t, err, &ce)
				assert.Equal(t, tt.kind, ce.Provider)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, p.Kind())
			assert.Equal(t, tt.wantTarget, p.Endpoint())
		})
	}
}

func TestClientFactory_BedrockRegion(t *testing.T) {
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg := model.ProviderConfig{Converse: model.ConverseProviderConfig{Region: "us-west-2", Model: "anthropic.claude-3-haiku"}}
	p, err := NewClientFactory(true).Provider(context.Background(), model.ProviderCloudConverse, cfg)
	require.NoError(t, err)
	assert.Equal(t, "bedrock-runtime.us-west-2.amazonaws.com", p.Endpoint())
	assert.Equal(t, "anthropic.claude-3-haiku", p.Model())
}

func TestClientFactory_BedrockBadProfileIsConfigError(t *testing.T) {
	t.Setenv("AWS_PROFILE", "does-not-exist")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))

	cfg := model.ProviderConfig{Converse: model.ConverseProviderConfig{Region: "us-west-2", Model: "anthropic.claude-3-haiku"}}
	var err error
	assert.NotPanics(t, func() {
		_, err = NewClientFactory(true).Provider(context.Background(), model.ProviderCloudConverse, cfg)
	})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, model.ProviderCloudConverse, ce.Provider)
	assert.Contains(t, ce.Reason, "provider.converse.region")
}

func TestGenerate_BedrockBadProfileFallsBackToPattern(t *testing.T) {
	t.Setenv("AWS_PROFILE", "does-not-exist")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))

	cfg := testConfig(model.ProviderCloudConverse, 2, true)
	cfg.Converse = model.ConverseProviderConfig{Region: "us-west-2", Model: "anthropic.claude-3-haiku"}
	o := newTestOrchestrator(NewClientFactory(true))

	var res *model.GenerationResult
	var err error
	assert.NotPanics(t, func() {
		res, err = o.Generate(context.Background(), testControl(), cfg, nil, "pattern text")
	})
	require.NoError(t, err)
	assert.Equal(t, "pattern text", res.Text)
	assert.True(t, res.UsedFallback)
	assert.False(t, res.Generated)
	assert.False(t, res.Attempted)
	assert.Contains(t, res.Error, "misconfigured")

	cfg.FallbackToPatternMatching = false
	_, err = o.Generate(context.Background(), testControl(), cfg, nil, "pattern text")
	var ce *ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestClassify(t *testing.T) {
	refused := fmt.Errorf("ollama: send request: %w", syscall.ECONNREFUSED)

	err := classify(refused, model.ProviderLocal, "http://localhost:11434")
	var ce *ConnectivityError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "cannot reach local provider at http://localhost:11434")
	assert.Contains(t, err.Error(), "Likely causes:")

	// Already classified errors are not wrapped twice.
	assert.Same(t, ce, classify(err, model.ProviderLocal, "x").(*ConnectivityError))

	plain := errors.New("openai: unexpected status 500: oops")
	assert.Same(t, plain, classify(plain, model.ProviderCloudChat, ""))
	assert.NoError(t, classify(nil, model.ProviderLocal, ""))
}

func TestConnectivityError_CloudCauses(t *testing.T) {
	err := &ConnectivityError{Provider: model.ProviderCloudChat, Err: errors.New("no such host")}
	assert.Contains(t, err.Error(), "DNS cannot resolve")
	assert.NotContains(t, err.Error(), "ollama serve")
}

func TestShortResponseError(t *testing.T) {
	err := &ShortResponseError{Length: 12, Min: MinAcceptedLength}
	assert.Equal(t, "generate: response too short (12 characters, need more than 50)", err.Error())
}
