package services

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"course-assistant-platform/internal/logger"
	"course-assistant-platform/models"
)

type ingestionStore interface {
	FindMaterial(ctx context.Context, id primitive.ObjectID) (*models.CourseMaterial, error)
	SetMaterialText(ctx context.Context, id primitive.ObjectID, text string, status models.ProcessingStatus) error
	SetMaterialStatus(ctx context.Context, id primitive.ObjectID, status models.ProcessingStatus) error
	MarkMaterialProcessed(ctx context.Context, id primitive.ObjectID, status models.ProcessingStatus) error
	ReplaceChunks(ctx context.Context, materialID primitive.ObjectID, chunks []models.MaterialChunk) error
}

// Ingestor runs the extract, chunk and embed stages for uploaded materials.
// Each stage records its completion flag, so a rerun after a failure resumes
// at the first incomplete stage instead of redoing finished work.
type Ingestor struct {
	store      ingestionStore
	extractor  *Extractor
	chunker    *Chunker
	embeddings *EmbeddingGenerator

	mu    sync.Mutex
	locks map[primitive.ObjectID]*sync.Mutex
}

func NewIngestor(store ingestionStore, extractor *Extractor, chunker *Chunker, embeddings *EmbeddingGenerator) *Ingestor {
	return &Ingestor{
		store:      store,
		extractor:  extractor,
		chunker:    chunker,
		embeddings: embeddings,
		locks:      make(map[primitive.ObjectID]*sync.Mutex),
	}
}

// materialLock serializes runs for one material. Concurrent runs for
// different materials proceed independently.
func (in *Ingestor) materialLock(id primitive.ObjectID) *sync.Mutex {
	in.mu.Lock()
	defer in.mu.Unlock()
	lock, ok := in.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		in.locks[id] = lock
	}
	return lock
}

// ProcessMaterial runs the material through any stages it has not completed
// yet. A material that already finished is a no-op, which makes duplicate
// queue deliveries harmless.
func (in *Ingestor) ProcessMaterial(ctx context.Context, materialID primitive.ObjectID) error {
	lock := in.materialLock(materialID)
	lock.Lock()
	defer lock.Unlock()

	material, err := in.store.FindMaterial(ctx, materialID)
	if err != nil {
		return fmt.Errorf("failed to load material: %w", err)
	}

	status := material.Processing
	status.Error = ""

	if material.IsProcessed && status.Done() {
		logger.Debug("Material already processed", "material_id", materialID.Hex())
		return nil
	}

	logger.Info("Processing material",
		"material_id", materialID.Hex(),
		"title", material.Title,
		"file_type", material.FileType,
		"resume_status", fmt.Sprintf("%+v", material.Processing))

	text := material.ContentText
	if !status.TextExtracted {
		text, err = in.extractor.ExtractText(material.FilePath, material.FileType)
		if err != nil {
			return in.fail(ctx, materialID, status, fmt.Errorf("extraction: %w", err))
		}
		status.TextExtracted = true
		if err := in.store.SetMaterialText(ctx, materialID, text, status); err != nil {
			return fmt.Errorf("failed to store extracted text: %w", err)
		}
	}

	if !status.ChunksCreated {
		pieces, err := in.chunker.Split(text)
		if err != nil {
			return in.fail(ctx, materialID, status, fmt.Errorf("chunking: %w", err))
		}
		chunks := make([]models.MaterialChunk, len(pieces))
		for i, piece := range pieces {
			chunks[i] = models.MaterialChunk{
				CourseID:      material.CourseID,
				MaterialID:    materialID,
				MaterialTitle: material.Title,
				ChunkIndex:    i,
				Content:       piece,
			}
		}
		if err := in.store.ReplaceChunks(ctx, materialID, chunks); err != nil {
			return in.fail(ctx, materialID, status, fmt.Errorf("storing chunks: %w", err))
		}
		status.ChunksCreated = true
		if err := in.store.SetMaterialStatus(ctx, materialID, status); err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		logger.Info("Created chunks", "material_id", materialID.Hex(), "count", len(chunks))
	}

	if !status.EmbeddingsGenerated {
		if _, err := in.embeddings.GenerateForMaterial(ctx, materialID); err != nil {
			return in.fail(ctx, materialID, status, fmt.Errorf("embeddings: %w", err))
		}
		status.EmbeddingsGenerated = true
	}

	if err := in.store.MarkMaterialProcessed(ctx, materialID, status); err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}

	logger.Info("Material processed", "material_id", materialID.Hex(), "title", material.Title)
	return nil
}

// fail records the error on the material without clearing completed stage
// flags, then surfaces it to the caller for retry handling.
func (in *Ingestor) fail(ctx context.Context, materialID primitive.ObjectID, status models.ProcessingStatus, cause error) error {
	status.Error = cause.Error()
	if err := in.store.SetMaterialStatus(ctx, materialID, status); err != nil {
		logger.Error("Failed to record processing error",
			"material_id", materialID.Hex(), "error", err)
	}
	logger.Error("Material processing failed",
		"material_id", materialID.Hex(), "error", cause)
	return cause
}
