package queue

import (
	"fmt"

	"github.com/hibiken/asynq"

	"course-assistant-platform/internal/config"
	"course-assistant-platform/internal/logger"
)

// Enqueuer submits background work. Routes depend on this interface so
// tests can capture enqueued ids without Redis.
type Enqueuer interface {
	EnqueueMaterial(materialID string) error
}

// Client wraps the asynq producer side.
type Client struct {
	client *asynq.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
	}
}

func (c *Client) EnqueueMaterial(materialID string) error {
	task, err := NewMaterialProcessTask(materialID)
	if err != nil {
		return fmt.Errorf("failed to build task: %w", err)
	}
	info, err := c.client.Enqueue(task)
	if err != nil {
		return fmt.Errorf("failed to enqueue: %w", err)
	}
	logger.Info("Enqueued material processing",
		"material_id", materialID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
