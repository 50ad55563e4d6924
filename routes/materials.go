package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"course-assistant-platform/internal/config"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/internal/queue"
	"course-assistant-platform/internal/store"
	"course-assistant-platform/models"
	"course-assistant-platform/services"
	"course-assistant-platform/utils"
)

var allowedFileTypes = map[string]bool{
	models.FileTypeTxt:  true,
	models.FileTypePDF:  true,
	models.FileTypeDocx: true,
	models.FileTypePpt:  true,
	models.FileTypePptx: true,
}

// SetupMaterialRoutes registers material upload and management endpoints.
func SetupMaterialRoutes(router *gin.Engine, cfg *config.Config, st *store.Store, ingestor *services.Ingestor, enqueuer queue.Enqueuer) {
	courseScoped := router.Group("/api/courses/:courseId/materials")
	{
		courseScoped.POST("", HandleMaterialUpload(cfg, st, ingestor, enqueuer))
		courseScoped.GET("", HandleMaterialList(st))
	}

	materials := router.Group("/api/materials/:materialId")
	{
		materials.GET("/status", HandleMaterialStatus(st))
		materials.DELETE("", HandleMaterialDelete(st))
	}
}

// HandleMaterialUpload accepts a course file, stores it, and starts
// ingestion. Files under the sync limit are processed inline; the queue task
// is enqueued regardless and no-ops when inline processing already finished,
// so a crash mid-request still gets retried by a worker.
func HandleMaterialUpload(cfg *config.Config, st *store.Store, ingestor *services.Ingestor, enqueuer queue.Enqueuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		courseID, ok := pathObjectID(c, "courseId")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		if _, err := st.FindCourse(ctx, courseID); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondWithNotFound(c, "Course not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load course", nil)
			return
		}

		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", gin.H{"max_bytes": cfg.MaxFileSize})
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "no_file",
				"No file provided", nil)
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", gin.H{"max_bytes": cfg.MaxFileSize})
			return
		}

		fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
		if !allowedFileTypes[fileType] {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type",
				"Unsupported file type", gin.H{"file_type": fileType})
			return
		}

		title := strings.TrimSpace(c.PostForm("title"))
		if title == "" {
			title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
		}

		uploadDir := filepath.Join(cfg.FileStorageDir, "materials", courseID.Hex())
		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}

		filePath := filepath.Join(uploadDir, fmt.Sprintf("%s.%s", uuid.NewString(), fileType))
		dst, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to open destination file", nil)
			return
		}
		if _, err := io.Copy(dst, file); err != nil {
			dst.Close()
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}
		dst.Close()

		material := &models.CourseMaterial{
			CourseID:    courseID,
			Title:       title,
			Description: strings.TrimSpace(c.PostForm("description")),
			FilePath:    filePath,
			FileType:    fileType,
			FileSize:    header.Size,
			UploadedAt:  time.Now(),
		}
		if err := st.InsertMaterial(ctx, material); err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to record material", nil)
			return
		}

		if header.Size <= cfg.SyncProcessingLimit {
			if err := ingestor.ProcessMaterial(ctx, material.ID); err != nil {
				logger.Error("Inline material processing failed",
					"material_id", material.ID.Hex(), "error", err)
			}
		}
		if err := enqueuer.EnqueueMaterial(material.ID.Hex()); err != nil {
			logger.Error("Failed to enqueue material processing",
				"material_id", material.ID.Hex(), "error", err)
		}

		// Ingestion outcome is deliberately not reported here; clients poll
		// the status endpoint instead.
		c.JSON(http.StatusAccepted, models.MaterialUploadResponse{
			ID:       material.ID.Hex(),
			Title:    material.Title,
			FileType: material.FileType,
			Message:  "Material uploaded. Processing started.",
		})
	}
}

// HandleMaterialList returns a course's materials with processing state.
func HandleMaterialList(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		courseID, ok := pathObjectID(c, "courseId")
		if !ok {
			return
		}

		materials, err := st.ListMaterialsByCourse(c.Request.Context(), courseID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list materials", nil)
			return
		}
		if materials == nil {
			materials = []models.CourseMaterial{}
		}
		c.JSON(http.StatusOK, gin.H{"materials": materials})
	}
}

// HandleMaterialStatus exposes per-stage ingestion progress for one material.
func HandleMaterialStatus(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		materialID, ok := pathObjectID(c, "materialId")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		material, err := st.FindMaterial(ctx, materialID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondWithNotFound(c, "Material not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load material", nil)
			return
		}

		chunkCount, err := st.CountChunks(ctx, materialID)
		if err != nil {
			chunkCount = 0
		}

		c.JSON(http.StatusOK, gin.H{
			"id":           material.ID.Hex(),
			"title":        material.Title,
			"is_processed": material.IsProcessed,
			"processing":   material.Processing,
			"processed_at": material.ProcessedAt,
			"chunk_count":  chunkCount,
		})
	}
}

// HandleMaterialDelete removes a material, its stored file, and its chunks.
func HandleMaterialDelete(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		materialID, ok := pathObjectID(c, "materialId")
		if !ok {
			return
		}

		ctx := c.Request.Context()
		material, err := st.FindMaterial(ctx, materialID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondWithNotFound(c, "Material not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load material", nil)
			return
		}

		if err := st.DeleteMaterial(ctx, materialID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Material not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to delete material", nil)
			return
		}

		// The record is the source of truth; a leftover file is only noise.
		if material.FilePath != "" {
			if err := os.Remove(material.FilePath); err != nil && !os.IsNotExist(err) {
				logger.Warn("Failed to remove material file",
					"material_id", materialID.Hex(), "path", material.FilePath, "error", err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"message": "Material deleted", "id": materialID.Hex()})
	}
}
