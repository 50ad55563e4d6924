package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"course-assistant-platform/internal/config"
)

// GeminiEmbedder produces embedding vectors through the Google Generative
// AI SDK (text-embedding-004 by default).
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder returns nil when the configured provider is not
// "google"; callers treat a nil embedder as "use the local fallback".
func NewGeminiEmbedder(ctx context.Context, cfg *config.Config) (*GeminiEmbedder, error) {
	if cfg.EmbeddingsProvider != "google" {
		return nil, nil
	}
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: cfg.GoogleEmbeddingsModel}, nil
}

func (e *GeminiEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	model := e.client.EmbeddingModel(e.model)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}

	// The SDK reports float32 values; chunks store float64.
	vector := make([]float64, len(resp.Embedding.Values))
	for i, v := range resp.Embedding.Values {
		vector[i] = float64(v)
	}
	return vector, nil
}

func (e *GeminiEmbedder) Close() error {
	if e != nil && e.client != nil {
		return e.client.Close()
	}
	return nil
}
