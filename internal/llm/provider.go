// Package llm wraps the external reasoning call. Providers return raw
// model output; schema validation and retry policy live in InvokeJSON so
// every caller gets the same at-least-once-fallible treatment.
package llm

import (
	"context"

	"github.com/ppiankov/veridica/internal/model"
)

// PromptSpec describes one reasoning call.
type PromptSpec struct {
	// System frames the model's role.
	System string

	// Prompt is the user-turn content.
	Prompt string

	// Schema describes the expected JSON structure. Appended to the
	// system prompt; the response is validated against it by the caller
	// via json.Unmarshal into the target type.
	Schema string

	// MaxTokens limits the response length (0 = provider default).
	MaxTokens int

	// Temperature overrides the configured sampling temperature when >= 0.
	Temperature float64
}

// Result is the raw provider output.
type Result struct {
	Raw        string
	Model      string
	TokensUsed int
}

// Provider is the interface every reasoning backend implements.
// Implementations map transport failures to *model.TransportError and
// 429-class rejections to *model.RateLimitError so the retry policy can
// tell them apart from input problems.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Invoke performs one reasoning call.
	Invoke(ctx context.Context, spec PromptSpec) (*Result, error)

	// IsAvailable checks if the provider is properly configured and accessible.
	IsAvailable(ctx context.Context) bool
}

// Config holds provider configuration.
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g. Ollama)
	BaseURL string

	// Timeout for API requests, seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling
	Temperature float64

	// MaxAttempts bounds transport retries in InvokeJSON
	MaxAttempts int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:     60,
		MaxTokens:   2000,
		Temperature: 0.2,
		MaxAttempts: 3,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config.
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:    mc.Provider,
		Model:       mc.Model,
		APIKey:      mc.APIKey,
		BaseURL:     mc.BaseURL,
		Timeout:     mc.Timeout,
		MaxTokens:   mc.MaxTokens,
		Temperature: mc.Temperature,
		MaxAttempts: mc.MaxAttempts,
	}
}
