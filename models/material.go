package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Supported material file types
const (
	FileTypeTxt  = "txt"
	FileTypePDF  = "pdf"
	FileTypeDocx = "docx"
	FileTypePpt  = "ppt"
	FileTypePptx = "pptx"
)

// CourseMaterial is an uploaded course file and its extraction/processing state.
// Mutated only by the ingestion pipeline after upload; deletion is an admin
// action that cascades to the material's chunks.
type CourseMaterial struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CourseID    primitive.ObjectID `bson:"course_id" json:"course_id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	FilePath    string             `bson:"file_path" json:"file_path"`
	FileType    string             `bson:"file_type" json:"file_type"`
	FileSize    int64              `bson:"file_size" json:"file_size"`
	ContentText string             `bson:"content_text,omitempty" json:"-"`
	Processing  ProcessingStatus   `bson:"processing" json:"processing"`
	IsProcessed bool               `bson:"is_processed" json:"is_processed"`
	UploadedAt  time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// ProcessingStatus records per-stage ingestion progress. The flags are
// independent rather than a linear state machine: a later stage can fail
// while earlier flags stay true, which pins down exactly where the pipeline
// stopped. The whole value is rewritten on each status change.
type ProcessingStatus struct {
	TextExtracted       bool   `bson:"text_extracted" json:"text_extracted"`
	ChunksCreated       bool   `bson:"chunks_created" json:"chunks_created"`
	EmbeddingsGenerated bool   `bson:"embeddings_generated" json:"embeddings_generated"`
	Error               string `bson:"error,omitempty" json:"error,omitempty"`
}

// Done reports terminal success: all stages complete and no recorded error.
func (s ProcessingStatus) Done() bool {
	return s.TextExtracted && s.ChunksCreated && s.EmbeddingsGenerated && s.Error == ""
}

// MaterialChunk is an ordered slice of a material's extracted text. Chunk
// indices for a material are contiguous from 0; re-ingestion replaces the
// full set. CourseID and MaterialTitle are denormalized so course-scoped
// retrieval and context rendering avoid a join per chunk.
type MaterialChunk struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CourseID      primitive.ObjectID `bson:"course_id" json:"course_id"`
	MaterialID    primitive.ObjectID `bson:"material_id" json:"material_id"`
	MaterialTitle string             `bson:"material_title" json:"material_title"`
	ChunkIndex    int                `bson:"chunk_index" json:"chunk_index"`
	Content       string             `bson:"content" json:"content"`
	Embedding     []float64          `bson:"embedding,omitempty" json:"-"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
}

// MaterialUploadResponse acknowledges an upload. Ingestion outcome is never
// reported here; operators read the processing status instead.
type MaterialUploadResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	FileType string `json:"file_type"`
	Message  string `json:"message"`
}
