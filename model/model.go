// Package model catalogs the chat models the provider adapters serve, with
// context windows and per-token pricing for run cost accounting.
//
// Pricing last verified: August 2026. Prices are USD per million tokens.
package model

import (
	"github.com/strandworks/strand"
)

// Provider names a model vendor.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

// Info describes one chat model.
type Info struct {
	// ID is the API identifier.
	ID string
	// Provider is the vendor serving the model.
	Provider Provider
	// ContextWindow is the maximum combined input size in tokens.
	ContextWindow int
	// MaxOutput is the maximum response size in tokens.
	MaxOutput int
	// InputPerMillion is the input token price.
	InputPerMillion float64
	// OutputPerMillion is the output token price.
	OutputPerMillion float64
}

func (m Info) String() string { return m.ID }

// Cost returns the dollar cost of the given usage at this model's rates.
func (m Info) Cost(usage strand.Usage) float64 {
	in := float64(usage.InputTokens) / 1e6 * m.InputPerMillion
	out := float64(usage.OutputTokens) / 1e6 * m.OutputPerMillion
	return in + out
}

// Anthropic Claude models
var (
	ClaudeOpus45   = Info{ID: "claude-opus-4-5", Provider: ProviderAnthropic, ContextWindow: 200_000, MaxOutput: 64_000, InputPerMillion: 5.00, OutputPerMillion: 25.00}
	ClaudeSonnet45 = Info{ID: "claude-sonnet-4-5", Provider: ProviderAnthropic, ContextWindow: 200_000, MaxOutput: 64_000, InputPerMillion: 3.00, OutputPerMillion: 15.00}
	ClaudeHaiku45  = Info{ID: "claude-haiku-4-5", Provider: ProviderAnthropic, ContextWindow: 200_000, MaxOutput: 64_000, InputPerMillion: 1.00, OutputPerMillion: 5.00}

	// DefaultClaude is the recommended default Anthropic model.
	DefaultClaude = ClaudeSonnet45
)

// OpenAI GPT models
var (
	GPT4o     = Info{ID: "gpt-4o", Provider: ProviderOpenAI, ContextWindow: 128_000, MaxOutput: 16_384, InputPerMillion: 2.50, OutputPerMillion: 10.00}
	GPT4oMini = Info{ID: "gpt-4o-mini", Provider: ProviderOpenAI, ContextWindow: 128_000, MaxOutput: 16_384, InputPerMillion: 0.15, OutputPerMillion: 0.60}
	GPT5      = Info{ID: "gpt-5", Provider: ProviderOpenAI, ContextWindow: 400_000, MaxOutput: 128_000, InputPerMillion: 1.25, OutputPerMillion: 10.00}
	GPT5Mini  = Info{ID: "gpt-5-mini", Provider: ProviderOpenAI, ContextWindow: 400_000, MaxOutput: 128_000, InputPerMillion: 0.25, OutputPerMillion: 1.00}

	// DefaultGPT is the recommended default OpenAI model.
	DefaultGPT = GPT4o
)

// Google Gemini models
var (
	Gemini20Flash = Info{ID: "gemini-2.0-flash", Provider: ProviderGoogle, ContextWindow: 1_000_000, MaxOutput: 8_192, InputPerMillion: 0.10, OutputPerMillion: 0.40}
	Gemini25Flash = Info{ID: "gemini-2.5-flash", Provider: ProviderGoogle, ContextWindow: 1_000_000, MaxOutput: 65_536, InputPerMillion: 0.30, OutputPerMillion: 2.50}
	Gemini25Pro   = Info{ID: "gemini-2.5-pro", Provider: ProviderGoogle, ContextWindow: 1_000_000, MaxOutput: 65_536, InputPerMillion: 1.25, OutputPerMillion: 10.00}

	// DefaultGemini is the recommended default Google model.
	DefaultGemini = Gemini20Flash
)

var catalog = func() map[string]Info {
	all := []Info{
		ClaudeOpus45, ClaudeSonnet45, ClaudeHaiku45,
		GPT4o, GPT4oMini, GPT5, GPT5Mini,
		Gemini20Flash, Gemini25Flash, Gemini25Pro,
	}
	m := make(map[string]Info, len(all))
	for _, info := range all {
		m[info.ID] = info
	}
	return m
}()

// Lookup returns the catalog entry for an API identifier.
func Lookup(id string) (Info, bool) {
	info, ok := catalog[id]
	return info, ok
}

// Cost returns the dollar cost of the given usage for a model identifier,
// or zero when the model is not in the catalog.
func Cost(id string, usage strand.Usage) float64 {
	info, ok := Lookup(id)
	if !ok {
		return 0
	}
	return info.Cost(usage)
}
