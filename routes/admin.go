package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"course-assistant-platform/services"
	"course-assistant-platform/utils"
)

// ConnectionTester verifies reachability of the completion backend.
// Satisfied by ai.CompletionClient.
type ConnectionTester interface {
	Ping(ctx context.Context) error
}

// SetupAdminRoutes registers operator endpoints: transcript export and the
// backend connection self-test.
func SetupAdminRoutes(router *gin.Engine, exporter *services.Exporter, tester ConnectionTester) {
	admin := router.Group("/api/admin")
	{
		admin.GET("/sessions/:sessionId/export", HandleTranscriptExport(exporter))
		admin.GET("/selftest", HandleSelfTest(tester))
	}
}

// HandleTranscriptExport downloads a session transcript as JSON or xlsx.
func HandleTranscriptExport(exporter *services.Exporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, ok := pathObjectID(c, "sessionId")
		if !ok {
			return
		}

		data, err := exporter.Transcript(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondWithNotFound(c, "Session not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to build transcript", nil)
			return
		}

		filename := fmt.Sprintf("transcript-%s-%s", sessionID.Hex(),
			time.Now().Format("2006-01-02"))

		switch c.DefaultQuery("format", "json") {
		case "xlsx":
			buf, err := exporter.Excel(data)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to render spreadsheet", nil)
				return
			}
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", filename))
			c.Data(http.StatusOK,
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf)
		case "json":
			buf, err := exporter.JSON(data)
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to render transcript", nil)
				return
			}
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", filename))
			c.Data(http.StatusOK, "application/json", buf)
		default:
			utils.RespondWithBadRequest(c, "Unsupported export format",
				gin.H{"format": c.Query("format")})
		}
	}
}

// HandleSelfTest pings the completion backend with a short timeout.
func HandleSelfTest(tester ConnectionTester) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		start := time.Now()
		if err := tester.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unreachable",
				"error":  err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"latency_ms": time.Since(start).Milliseconds(),
		})
	}
}
