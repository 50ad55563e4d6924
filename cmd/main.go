package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"course-assistant-platform/internal/ai"
	"course-assistant-platform/internal/config"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/internal/queue"
	"course-assistant-platform/internal/store"
	"course-assistant-platform/internal/telemetry"
	"course-assistant-platform/middleware"
	"course-assistant-platform/routes"
	"course-assistant-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("course-assistant-platform", cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("Failed to initialize tracing", "error", err)
		} else {
			defer shutdown()
		}
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	st := store.New(mongoClient, cfg)

	queueClient := queue.NewClient(cfg)
	defer queueClient.Close()

	completions := ai.NewCompletionClient(cfg)

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
	retriever := services.NewRetriever(st)
	conversation := services.NewConversation(st, retriever, completions, cfg.GeminiModel)
	exporter := services.NewExporter(st)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupCourseRoutes(router, st)
	routes.SetupMaterialRoutes(router, cfg, st, ingestor, queueClient)
	routes.SetupChatRoutes(router, st, conversation)
	routes.SetupAdminRoutes(router, exporter, completions)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
