// Package llm provides clients for the external reasoning and embedding
// services. The reasoning contract is text in, text out; the text is
// expected (not guaranteed) to be parseable JSON when structured output
// is requested.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/triage-service/internal/config"
)

// GenerateOptions tune a single reasoning call.
type GenerateOptions struct {
	Temperature      float64
	StructuredOutput bool
}

// ReasoningClient invokes the external reasoning service. Implementations
// may fail, stall, or return malformed text; callers own fault handling.
type ReasoningClient interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// Embedder produces fixed-length dense vectors for free text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewReasoningClient builds the configured provider.
func NewReasoningClient(ctx context.Context, cfg config.LLMConfig) (ReasoningClient, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	case "gemini", "":
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// StripFences removes markdown code fences that models wrap around JSON.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
