// Package cost estimates spend for completion calls.
package cost

import "strings"

// Rates holds per-provider, per-model pricing.
type Rates struct {
	Anthropic map[string]ModelRate `mapstructure:"anthropic"`
	OpenAI    map[string]ModelRate `mapstructure:"openai"`
}

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input  float64 `mapstructure:"input"`
	Output float64 `mapstructure:"output"`
}

// Calculator computes costs for completion usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Completion returns the estimated cost of one call. A model with no exact
// entry uses the longest configured name it starts with, so dated snapshots
// such as "gpt-4o-2024-08-06" price as "gpt-4o". Unknown providers or
// models cost 0.
func (c *Calculator) Completion(provider, model string, input, output int64) float64 {
	var table map[string]ModelRate
	switch provider {
	case "anthropic":
		table = c.rates.Anthropic
	case "openai":
		table = c.rates.OpenAI
	}
	rate, ok := lookupRate(table, model)
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

func lookupRate(table map[string]ModelRate, model string) (ModelRate, bool) {
	if rate, ok := table[model]; ok {
		return rate, true
	}
	best := ""
	for name := range table {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return ModelRate{}, false
	}
	return table[best], true
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
			"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
		},
		OpenAI: map[string]ModelRate{
			"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},
			"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
			"gpt-4o":        {Input: 2.50, Output: 10.00},
		},
	}
}
