//go:build !integration

package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/control-assist/internal/batch"
	"github.com/sells-group/control-assist/internal/config"
	"github.com/sells-group/control-assist/internal/model"
	"github.com/sells-group/control-assist/internal/monitoring"
	"github.com/sells-group/control-assist/internal/store"
	"github.com/sells-group/control-assist/pkg/ollama"
)

func TestFormatEventsList(t *testing.T) {
	var buf bytes.Buffer
	formatEventsList(&buf, []model.GenerationEvent{{
		ControlID: "AC-2",
		Provider:  model.ProviderCloudChat,
		Model:     "gpt-4o-mini",
		Attempt:   2,
		Status:    model.EventError,
		LatencyMs: 1200,
		CostUSD:   0.0001,
		Error:     "openai: unexpected status 503",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}})

	out := buf.String()
	assert.Contains(t, out, "CONTROL")
	assert.Contains(t, out, "AC-2")
	assert.Contains(t, out, "cloud-chat")
	assert.Contains(t, out, "1200ms")
	assert.Contains(t, out, "unexpected status 503")
}

func TestFormatStats(t *testing.T) {
	var buf bytes.Buffer
	formatStats(&buf, []store.ProviderStats{
		{Provider: model.ProviderLocal, Model: "llama3.1", Calls: 4, Errors: 1, AvgLatencyMs: 900},
		{Provider: model.ProviderCloudChat, Model: "gpt-4o-mini", Calls: 2, CostUSD: 0.5},
	})

	out := buf.String()
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "$0.5000")
}

func TestFormatModels_FlagsMissingConfiguredModel(t *testing.T) {
	var buf bytes.Buffer
	formatModels(&buf, []ollama.Model{{Name: "mistral:latest", Size: 4_100_000_000}}, "llama3.1")
	assert.Contains(t, buf.String(), "mistral:latest")
	assert.Contains(t, buf.String(), "ollama pull llama3.1")

	buf.Reset()
	formatModels(&buf, []ollama.Model{{Name: "llama3.1:latest"}}, "llama3.1")
	assert.NotContains(t, buf.String(), "ollama pull")
}

func TestFormatAlerts(t *testing.T) {
	var buf bytes.Buffer
	formatAlerts(&buf, nil)
	assert.Contains(t, buf.String(), "All providers healthy.")

	buf.Reset()
	formatAlerts(&buf, []monitoring.Alert{{
		Type:     monitoring.AlertProviderErrorRate,
		Severity: "high",
		Message:  "local/llama3.1 error rate 100.0% exceeds threshold 25.0%",
	}})
	out := buf.String()
	assert.Contains(t, out, "SEVERITY")
	assert.Contains(t, out, "provider_error_rate")
	assert.Contains(t, out, "local/llama3.1")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestProcessBatch_AppliesLimit(t *testing.T) {
	sel := &mockSelector{}
	sel.On("Select", context.Background(), model.Control{ID: "AC-1"}, []model.ExistingControl(nil), model.ProviderConfig{}).
		Return(&model.Suggestion{ControlID: "AC-1", Source: model.SourceAI}, nil).Once()
	runner := batch.NewRunner(sel, config.Static{}, batch.WithDelay(0))

	out := processBatch(context.Background(), runner, []model.Control{{ID: "AC-1"}, {ID: "AC-2"}}, nil, 1)

	require.Len(t, out.Results, 1)
	assert.Equal(t, batch.Summary{Total: 1, Succeeded: 1, Generated: 1}, out.Summary)
	sel.AssertExpectations(t)
}

func TestInitStore_None(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg = &config.Config{Store: config.StoreConfig{Driver: config.DriverNone}}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestInitStore_SQLite(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg = &config.Config{Store: config.StoreConfig{Driver: config.DriverSQLite, DatabaseURL: t.TempDir() + "/events.db"}}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Close())
}

func TestInitStore_Unsupported(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	_, err := initStore(context.Background())
	assert.Error(t, err)
}
