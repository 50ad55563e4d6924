package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"

	"course-assistant-platform/internal/logger"
	"course-assistant-platform/models"
)

const fallbackEmbeddingDims = 50

// Embedder produces a vector for a piece of text. The real implementation
// calls the Gemini embedding API; tests substitute a fake.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
}

type embeddingStore interface {
	ChunksWithoutEmbedding(ctx context.Context, materialID primitive.ObjectID) ([]models.MaterialChunk, error)
	SetChunkEmbedding(ctx context.Context, chunkID primitive.ObjectID, embedding []float64) error
}

// EmbeddingGenerator fills in missing chunk embeddings for a material.
// A nil Embedder, or a per-chunk API failure, falls back to the keyword
// vector so processing always completes.
type EmbeddingGenerator struct {
	store    embeddingStore
	embedder Embedder
	limiter  *rate.Limiter
}

func NewEmbeddingGenerator(store embeddingStore, embedder Embedder, delay time.Duration) *EmbeddingGenerator {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	return &EmbeddingGenerator{
		store:    store,
		embedder: embedder,
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
	}
}

// GenerateForMaterial embeds every chunk of the material that does not have
// a vector yet. Chunks embedded on a previous attempt are skipped, so a
// retried run resumes where it stopped. One failing chunk does not abort the
// rest.
func (g *EmbeddingGenerator) GenerateForMaterial(ctx context.Context, materialID primitive.ObjectID) (int, error) {
	chunks, err := g.store.ChunksWithoutEmbedding(ctx, materialID)
	if err != nil {
		return 0, fmt.Errorf("failed to load chunks: %w", err)
	}

	generated := 0
	for _, chunk := range chunks {
		if err := g.limiter.Wait(ctx); err != nil {
			return generated, err
		}

		vector := g.embed(ctx, chunk.Content)
		if err := g.store.SetChunkEmbedding(ctx, chunk.ID, vector); err != nil {
			logger.Error("Failed to store chunk embedding",
				"chunk_id", chunk.ID.Hex(),
				"material_id", materialID.Hex(),
				"error", err)
			continue
		}
		generated++
	}

	logger.Info("Generated embeddings",
		"material_id", materialID.Hex(),
		"chunks", len(chunks),
		"generated", generated)
	return generated, nil
}

func (g *EmbeddingGenerator) embed(ctx context.Context, text string) []float64 {
	if g.embedder != nil {
		vector, err := g.embedder.EmbedText(ctx, text)
		if err == nil && len(vector) > 0 {
			return vector
		}
		if err != nil {
			logger.Warn("Embedding API call failed, using keyword fallback", "error", err)
		}
	}
	return KeywordEmbedding(text)
}

var nonWordChars = regexp.MustCompile(`[^\w\s]`)

var embeddingStopWords = map[string]bool{
	"the": true, "and": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "with": true, "by": true, "of": true,
	"is": true, "are": true, "was": true, "were": true,
}

// KeywordEmbedding builds a fixed 50-dimension presence vector from the
// text's most frequent non-stop-words. It is a stand-in for a real embedding
// model, not a semantic vector, but it keeps the pipeline moving when the
// embedding API is unavailable.
func KeywordEmbedding(text string) []float64 {
	text = strings.ToLower(text)
	text = nonWordChars.ReplaceAllString(text, "")

	counts := make(map[string]int)
	var order []string
	for _, word := range strings.Fields(text) {
		if embeddingStopWords[word] {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}

	// Frequency order, first occurrence breaking ties.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > fallbackEmbeddingDims {
		order = order[:fallbackEmbeddingDims]
	}

	vector := make([]float64, fallbackEmbeddingDims)
	for i := range order {
		vector[i] = 1
	}
	return vector
}
