// Package llm provides the model client used to infer form selectors.
package llm

import (
	"fmt"
	"time"
)

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: classification, extraction
	TierLite ModelTier = "lite"
	// TierStandard is for moderate reasoning and structured output
	TierStandard ModelTier = "standard"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// Generation defaults. Selector inference wants short, near-deterministic replies.
const (
	DefaultMaxOutputTokens = 1000
	DefaultTemperature     = 0.1
	DefaultRequestTimeout  = 30 * time.Second
)

// Config selects the provider, the model per tier and generation limits
type Config struct {
	Provider        Provider
	Models          map[ModelTier]string
	MaxOutputTokens int
	Temperature     float32
	// RequestTimeout bounds one generation call; zero leaves it to the caller's context
	RequestTimeout time.Duration
}

// DefaultConfig returns the Gemini configuration used by the field mapper
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		MaxOutputTokens: DefaultMaxOutputTokens,
		Temperature:     DefaultTemperature,
		RequestTimeout:  DefaultRequestTimeout,
	}
}

// GetModel returns the model for tier, falling back to the standard and then the
// lite model. Empty means nothing is configured.
func (c *Config) GetModel(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if model := c.Models[t]; model != "" {
			return model
		}
	}
	return ""
}

// Validate reports the first unusable setting
func (c *Config) Validate() error {
	if c.Provider != ProviderGemini {
		return fmt.Errorf("unsupported LLM provider: %s", c.Provider)
	}
	if c.GetModel(TierLite) == "" {
		return fmt.Errorf("no model configured")
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", c.MaxOutputTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature)
	}
	return nil
}
