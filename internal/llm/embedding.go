package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/spec-kit/triage-service/internal/config"
)

// GeminiEmbedder generates dense vectors using the Gemini embedding API.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int32
}

// NewGeminiEmbedder creates the embedding client.
func NewGeminiEmbedder(ctx context.Context, apiKey string, cfg config.EmbeddingConfig) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, dimension: int32(cfg.Dimension)}, nil
}

// Embed generates an embedding for a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	embedCfg := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	if e.dimension > 0 {
		embedCfg.OutputDimensionality = &e.dimension
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, embedCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}
