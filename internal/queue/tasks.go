package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"course-assistant-platform/internal/logger"
)

const TaskProcessMaterial = "material:process"

type MaterialProcessPayload struct {
	MaterialID string `json:"material_id"`
}

// NewMaterialProcessTask enqueues ingestion for an uploaded material.
// Retries cover transient extraction and embedding failures; the pipeline
// itself is resumable, so redelivery only redoes incomplete stages.
func NewMaterialProcessTask(materialID string) (*asynq.Task, error) {
	payload, err := json.Marshal(MaterialProcessPayload{MaterialID: materialID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessMaterial,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

// MaterialIngestor is the pipeline entry point the worker drives.
type MaterialIngestor interface {
	ProcessMaterial(ctx context.Context, materialID primitive.ObjectID) error
}

type TaskProcessor struct {
	ingestor MaterialIngestor
}

func NewTaskProcessor(ingestor MaterialIngestor) *TaskProcessor {
	return &TaskProcessor{ingestor: ingestor}
}

func (p *TaskProcessor) HandleProcessMaterial(ctx context.Context, t *asynq.Task) error {
	var payload MaterialProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	materialID, err := primitive.ObjectIDFromHex(payload.MaterialID)
	if err != nil {
		// A malformed id will never become valid on retry.
		return fmt.Errorf("invalid material id %q: %w", payload.MaterialID, asynq.SkipRetry)
	}

	logger.Info("Processing material task", "material_id", payload.MaterialID)
	if err := p.ingestor.ProcessMaterial(ctx, materialID); err != nil {
		logger.Error("Material task failed", "material_id", payload.MaterialID, "error", err)
		return err // asynq retries
	}
	return nil
}

// Mux wires task types to their handlers for the worker server.
func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskProcessMaterial, p.HandleProcessMaterial)
	return mux
}
