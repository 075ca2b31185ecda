package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Providers: map[string]map[string]ModelRate{
			"cloud-chat": {
				"mini": {Input: 0.15, Output: 0.60},
			},
			"cloud-converse": {
				"haiku": {Input: 0.80, Output: 4.00},
			},
		},
	}
}

func TestGeneration(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name     string
		provider string
		model    string
		input    int
		output   int
		want     float64
	}{
		{
			name:     "converse haiku",
			provider: "cloud-converse", model: "haiku",
			input: 1000000, output: 100000,
			want: 0.80 + 0.40,
		},
		{
			name:     "chat mini",
			provider: "cloud-chat", model: "mini",
			input: 2000000, output: 1000000,
			want: 0.30 + 0.60,
		},
		{
			name:     "unknown model",
			provider: "cloud-chat", model: "nope",
			input: 1000, output: 1000,
			want: 0,
		},
		{
			name:     "local is free",
			provider: "local", model: "llama3",
			input: 1000, output: 1000,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Generation(tt.provider, tt.model, tt.input, tt.output)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestGeneration_NilCalculator(t *testing.T) {
	t.Parallel()
	var calc *Calculator
	assert.Zero(t, calc.Generation("cloud-chat", "mini", 100, 100))
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 0, EstimateTokens("   \n"))
	assert.Equal(t, 1, EstimateTokens("ok"))
	assert.Equal(t, 2, EstimateTokens("12345678"))
	assert.Equal(t, 3, EstimateTokens("123456789"))
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()
	assert.Contains(t, rates.Providers, "cloud-chat")
	assert.Contains(t, rates.Providers, "cloud-converse")
	assert.NotContains(t, rates.Providers, "local")
}
