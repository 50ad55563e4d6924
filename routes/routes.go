package routes

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"course-assistant-platform/utils"
)

// pathObjectID parses an ObjectID path parameter, responding 400 and
// returning ok=false when the value is not a valid hex id.
func pathObjectID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		utils.RespondWithBadRequest(c, "Invalid "+name, gin.H{name: c.Param(name)})
		return primitive.NilObjectID, false
	}
	return id, true
}
