package llm

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds LLM client configuration.
type Config struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string // Required: API key for the provider
	BaseURL   string // Optional: custom API endpoint
	Model     string // Model name (e.g., "gpt-4o", "claude-sonnet-4-5-20250514")
	MaxTokens int    // Optional: completion budget, provider default when 0
}

// TextClient completes a single prompt. It is the synchronous provider family.
type TextClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Provider() string
	Model() string
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string   // Optional: request JSON output matching Schema (OpenAI only)
	Schema       any      // JSON Schema, see GenerateSchema
	MaxTokens    int      // Overrides Config.MaxTokens when set
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

// Completion is the raw text a provider returned. Parsing is left to the caller.
type Completion struct {
	Content          string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// NewTextClient creates a TextClient for cfg.Provider. Defaults to OpenAI.
func NewTextClient(cfg Config) (TextClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// GenerateSchema generates a strict JSON schema for T.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func Temp(t float64) *float64 {
	return &t
}
