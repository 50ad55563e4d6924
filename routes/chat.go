package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"course-assistant-platform/internal/logger"
	"course-assistant-platform/internal/store"
	"course-assistant-platform/models"
	"course-assistant-platform/services"
	"course-assistant-platform/utils"
)

// SetupChatRoutes registers the student-facing chat endpoints. Sessions are
// anonymous: the client holds an opaque token and every endpoint resolves it
// through get-or-create, so a fresh token simply starts an empty history.
func SetupChatRoutes(router *gin.Engine, st *store.Store, conv *services.Conversation) {
	chat := router.Group("/api/courses/:courseId/chat")
	{
		chat.POST("", HandleChatMessage(st, conv))
		chat.GET("/history", HandleChatHistory(st, conv))
		chat.DELETE("/history", HandleClearHistory(st, conv))
	}
}

// HandleChatMessage answers one student question within a session.
func HandleChatMessage(st *store.Store, conv *services.Conversation) gin.HandlerFunc {
	return func(c *gin.Context) {
		courseID, ok := pathObjectID(c, "courseId")
		if !ok {
			return
		}

		var req models.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid chat request", err.Error())
			return
		}

		ctx := c.Request.Context()

		course, err := st.FindCourse(ctx, courseID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondWithNotFound(c, "Course not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load course", nil)
			return
		}
		if !course.IsActive {
			utils.RespondWithError(c, http.StatusForbidden, "course_inactive",
				"This course is not accepting questions", nil)
			return
		}

		session, err := conv.Bootstrap(ctx, req.SessionToken, courseID, req.Nickname)
		if err != nil {
			logger.Error("Failed to resolve chat session",
				"course_id", courseID.Hex(), "error", err)
			utils.RespondWithInternalError(c, "Failed to resolve session", nil)
			return
		}

		resp, err := conv.Respond(ctx, session, req.Message)
		if err != nil {
			logger.Error("Failed to answer chat message",
				"session_id", session.ID.Hex(), "error", err)
			utils.RespondWithInternalError(c, "Failed to process message", nil)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

// HandleChatHistory returns the session's full message history, oldest first.
func HandleChatHistory(st *store.Store, conv *services.Conversation) gin.HandlerFunc {
	return func(c *gin.Context) {
		courseID, ok := pathObjectID(c, "courseId")
		if !ok {
			return
		}

		token := c.Query("session_token")
		if token == "" {
			utils.RespondWithBadRequest(c, "session_token query parameter is required", nil)
			return
		}

		ctx := c.Request.Context()
		session, err := conv.Bootstrap(ctx, token, courseID, "")
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to resolve session", nil)
			return
		}

		messages, err := st.ListMessages(ctx, session.ID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load history", nil)
			return
		}
		if messages == nil {
			messages = []models.ChatMessage{}
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id": session.ID.Hex(),
			"messages":   messages,
		})
	}
}

// HandleClearHistory deletes the session's messages. The session record
// survives so the client token keeps working.
func HandleClearHistory(st *store.Store, conv *services.Conversation) gin.HandlerFunc {
	return func(c *gin.Context) {
		courseID, ok := pathObjectID(c, "courseId")
		if !ok {
			return
		}

		token := c.Query("session_token")
		if token == "" {
			utils.RespondWithBadRequest(c, "session_token query parameter is required", nil)
			return
		}

		ctx := c.Request.Context()
		session, err := conv.Bootstrap(ctx, token, courseID, "")
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to resolve session", nil)
			return
		}

		deleted, err := st.ClearSessionMessages(ctx, session.ID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to clear history", nil)
			return
		}

		logger.Info("Chat history cleared",
			"session_id", session.ID.Hex(), "deleted", deleted)
		c.JSON(http.StatusOK, gin.H{
			"session_id": session.ID.Hex(),
			"deleted":    deleted,
		})
	}
}
