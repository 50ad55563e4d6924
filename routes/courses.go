package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"course-assistant-platform/internal/store"
	"course-assistant-platform/models"
	"course-assistant-platform/utils"
)

// SetupCourseRoutes registers course management endpoints.
func SetupCourseRoutes(router *gin.Engine, st *store.Store) {
	courses := router.Group("/api/courses")
	{
		courses.POST("", HandleCourseCreate(st))
		courses.GET("", HandleCourseList(st))
		courses.GET("/:courseId", HandleCourseGet(st))
		courses.PUT("/:courseId", HandleCourseUpdate(st))
	}
}

func HandleCourseCreate(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CourseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid course request", err.Error())
			return
		}

		course := &models.Course{
			Title:       req.Title,
			Description: req.Description,
			Code:        req.Code,
			Instructor:  req.Instructor,
			IsActive:    true,
		}
		if err := st.InsertCourse(c.Request.Context(), course); err != nil {
			utils.RespondWithInternalError(c, "Failed to create course", nil)
			return
		}

		c.JSON(http.StatusCreated, course)
	}
}

func HandleCourseList(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.Query("active") == "true"
		courses, err := st.ListCourses(c.Request.Context(), activeOnly)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list courses", nil)
			return
		}
		if courses == nil {
			courses = []models.Course{}
		}
		c.JSON(http.StatusOK, gin.H{"courses": courses})
	}
}

func HandleCourseGet(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		courseID, ok := pathObjectID(c, "courseId")
		if !ok {
			return
		}

		course, err := st.FindCourse(c.Request.Context(), courseID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				utils.RespondWithNotFound(c, "Course not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to load course", nil)
			return
		}
		c.JSON(http.StatusOK, course)
	}
}

// HandleCourseUpdate applies a partial update. Only provided fields change;
// is_active toggling goes through the optional boolean.
func HandleCourseUpdate(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		courseID, ok := pathObjectID(c, "courseId")
		if !ok {
			return
		}

		var req struct {
			Title       *string `json:"title,omitempty"`
			Description *string `json:"description,omitempty"`
			Code        *string `json:"code,omitempty"`
			Instructor  *string `json:"instructor,omitempty"`
			IsActive    *bool   `json:"is_active,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid course update", err.Error())
			return
		}

		update := bson.M{}
		if req.Title != nil {
			update["title"] = *req.Title
		}
		if req.Description != nil {
			update["description"] = *req.Description
		}
		if req.Code != nil {
			update["code"] = *req.Code
		}
		if req.Instructor != nil {
			update["instructor"] = *req.Instructor
		}
		if req.IsActive != nil {
			update["is_active"] = *req.IsActive
		}
		if len(update) == 0 {
			utils.RespondWithBadRequest(c, "No fields to update", nil)
			return
		}

		ctx := c.Request.Context()
		if err := st.UpdateCourse(ctx, courseID, update); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithNotFound(c, "Course not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to update course", nil)
			return
		}

		course, err := st.FindCourse(ctx, courseID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to load course", nil)
			return
		}
		c.JSON(http.StatusOK, course)
	}
}
