package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"course-assistant-platform/internal/ai"
	"course-assistant-platform/internal/config"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/internal/queue"
	"course-assistant-platform/internal/store"
	"course-assistant-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	st := store.New(mongoClient, cfg)

	var embedder services.Embedder
	if gem, err := ai.NewGeminiEmbedder(context.Background(), cfg); err != nil {
		logger.Warn("Embedding backend unavailable, using keyword fallback", "error", err)
	} else if gem != nil {
		embedder = gem
		defer gem.Close()
	}

	embeddings := services.NewEmbeddingGenerator(st, embedder,
		time.Duration(cfg.EmbeddingDelayMs)*time.Millisecond)
	ingestor := services.NewIngestor(st, services.NewExtractor(),
		services.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap), embeddings)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(ingestor)

	// The sweep enqueues through the same Redis connection the worker
	// consumes from, catching uploads whose original task was lost.
	queueClient := queue.NewClient(cfg)
	defer queueClient.Close()

	sweeper := services.NewSweeper(st, queueClient,
		time.Duration(cfg.SweepIntervalMin)*time.Minute)
	if err := sweeper.Start(); err != nil {
		log.Fatal("Failed to start sweep scheduler:", err)
	}
	defer sweeper.Stop()

	logger.Info("Starting ingestion worker",
		"concurrency", 5, "redis", cfg.RedisURL,
		"sweep_interval_min", cfg.SweepIntervalMin)

	go func() {
		if err := server.Run(processor.Mux()); err != nil {
			log.Fatal("Failed to start worker:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker")
	server.Shutdown()
}
