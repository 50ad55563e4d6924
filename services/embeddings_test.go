package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"course-assistant-platform/models"
)

func TestKeywordEmbeddingDimensions(t *testing.T) {
	vec := KeywordEmbedding("sorting algorithms compare elements pairwise")
	if len(vec) != 50 {
		t.Fatalf("expected 50 dims, got %d", len(vec))
	}
}

func TestKeywordEmbeddingPresenceAndPadding(t *testing.T) {
	// Four distinct non-stop-words: leading ones, the rest zero padding.
	vec := KeywordEmbedding("graphs and trees are graphs with nodes edges")
	ones := 0
	for i, v := range vec {
		if v != 0 && v != 1 {
			t.Fatalf("vec[%d] = %v, want 0 or 1", i, v)
		}
		if v == 1 {
			ones++
		}
	}
	// graphs, trees, nodes, edges survive; and/are/with are stop words.
	if ones != 4 {
		t.Errorf("expected 4 ones, got %d", ones)
	}
	for i := ones; i < len(vec); i++ {
		if vec[i] != 0 {
			t.Errorf("expected zero padding after presence bits, vec[%d] = %v", i, vec[i])
		}
	}
}

func TestKeywordEmbeddingStripsPunctuationAndCase(t *testing.T) {
	a := KeywordEmbedding("Binary search! binary SEARCH.")
	b := KeywordEmbedding("binary search binary search")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("punctuation or case changed the vector at dim %d", i)
		}
	}
}

func TestKeywordEmbeddingEmptyText(t *testing.T) {
	vec := KeywordEmbedding("")
	if len(vec) != 50 {
		t.Fatalf("expected 50 dims, got %d", len(vec))
	}
	for i, v := range vec {
		if v != 0 {
			t.Errorf("vec[%d] = %v, want 0", i, v)
		}
	}
}

type fakeEmbeddingStore struct {
	pending []models.MaterialChunk
	saved   map[primitive.ObjectID][]float64
	failFor primitive.ObjectID
}

func (f *fakeEmbeddingStore) ChunksWithoutEmbedding(ctx context.Context, materialID primitive.ObjectID) ([]models.MaterialChunk, error) {
	return f.pending, nil
}

func (f *fakeEmbeddingStore) SetChunkEmbedding(ctx context.Context, chunkID primitive.ObjectID, embedding []float64) error {
	if chunkID == f.failFor {
		return errors.New("write failed")
	}
	if f.saved == nil {
		f.saved = make(map[primitive.ObjectID][]float64)
	}
	f.saved[chunkID] = embedding
	return nil
}

type fakeEmbedder struct {
	vector []float64
	err    error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	return f.vector, f.err
}

func testChunks(n int) []models.MaterialChunk {
	chunks := make([]models.MaterialChunk, n)
	for i := range chunks {
		chunks[i] = models.MaterialChunk{
			ID:      primitive.NewObjectID(),
			Content: "chunk content number words",
		}
	}
	return chunks
}

func TestGenerateForMaterialUsesEmbedder(t *testing.T) {
	store := &fakeEmbeddingStore{pending: testChunks(2)}
	embedder := &fakeEmbedder{vector: []float64{0.1, 0.2, 0.3}}
	g := NewEmbeddingGenerator(store, embedder, time.Microsecond)

	generated, err := g.GenerateForMaterial(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("GenerateForMaterial: %v", err)
	}
	if generated != 2 {
		t.Fatalf("expected 2 generated, got %d", generated)
	}
	for id, vec := range store.saved {
		if len(vec) != 3 {
			t.Errorf("chunk %s got fallback vector instead of embedder output", id.Hex())
		}
	}
}

func TestGenerateForMaterialFallsBackOnAPIError(t *testing.T) {
	store := &fakeEmbeddingStore{pending: testChunks(1)}
	embedder := &fakeEmbedder{err: errors.New("quota exceeded")}
	g := NewEmbeddingGenerator(store, embedder, time.Microsecond)

	generated, err := g.GenerateForMaterial(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("GenerateForMaterial: %v", err)
	}
	if generated != 1 {
		t.Fatalf("expected 1 generated, got %d", generated)
	}
	for _, vec := range store.saved {
		if len(vec) != 50 {
			t.Errorf("expected 50-dim fallback vector, got %d dims", len(vec))
		}
	}
}

func TestGenerateForMaterialWithoutEmbedder(t *testing.T) {
	store := &fakeEmbeddingStore{pending: testChunks(1)}
	g := NewEmbeddingGenerator(store, nil, time.Microsecond)

	generated, err := g.GenerateForMaterial(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("GenerateForMaterial: %v", err)
	}
	if generated != 1 {
		t.Fatalf("expected 1 generated, got %d", generated)
	}
}

func TestGenerateForMaterialIsolatesChunkFailures(t *testing.T) {
	chunks := testChunks(3)
	store := &fakeEmbeddingStore{pending: chunks, failFor: chunks[1].ID}
	g := NewEmbeddingGenerator(store, nil, time.Microsecond)

	generated, err := g.GenerateForMaterial(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("GenerateForMaterial: %v", err)
	}
	if generated != 2 {
		t.Fatalf("expected 2 generated despite one failure, got %d", generated)
	}
	if _, ok := store.saved[chunks[1].ID]; ok {
		t.Error("failing chunk should not be recorded as saved")
	}
}
