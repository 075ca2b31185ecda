//go:build !integration

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"suggest", "batch", "serve", "events", "providers"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "control-assist", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestSuggestCommand_Flags(t *testing.T) {
	for _, name := range []string{"id", "title", "family", "description", "existing"} {
		assert.NotNil(t, suggestCmd.Flags().Lookup(name), "suggest should have --%s flag", name)
	}
}

func TestBatchCommand_Flags(t *testing.T) {
	flag := batchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "batch command should have --limit flag")
	assert.Equal(t, "0", flag.DefValue)

	out := batchCmd.Flags().Lookup("output")
	require.NotNil(t, out)
	assert.Equal(t, "-", out.DefValue)

	delay := batchCmd.Flags().Lookup("delay")
	require.NotNil(t, delay)
	assert.Equal(t, "500ms", delay.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestEventsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range eventsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "stats", "check"} {
		assert.True(t, names[name], "events should have subcommand %q", name)
	}
}
