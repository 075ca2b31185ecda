package cost

import (
	"strings"
	"unicode/utf8"
)

// charsPerToken approximates tokenizer output for English prose.
const charsPerToken = 4

// Rates holds per-provider pricing configuration keyed by provider kind and
// then by model name.
type Rates struct {
	Providers map[string]map[string]ModelRate `yaml:"providers" mapstructure:"providers"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes costs for provider usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// EstimateTokens returns a rough token count for text. Empty or
// whitespace-only text counts as zero; any other text counts at least one.
func EstimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// Generation computes the cost of one generation call. Unknown providers
// or models (and every local model) cost nothing.
func (c *Calculator) Generation(provider, model string, input, output int) float64 {
	if c == nil {
		return 0
	}
	models, ok := c.rates.Providers[provider]
	if !ok {
		return 0
	}
	rate, ok := models[model]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	return inCost + outCost
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Providers: map[string]map[string]ModelRate{
			"cloud-chat": {
				"gpt-4o-mini": {Input: 0.15, Output: 0.60},
				"gpt-4o":      {Input: 2.50, Output: 10.00},
			},
			"cloud-converse": {
				"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
				"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			},
		},
	}
}
