package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Course groups uploaded materials and chat sessions.
type Course struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Code        string             `bson:"code,omitempty" json:"code,omitempty"`
	Instructor  string             `bson:"instructor,omitempty" json:"instructor,omitempty"`
	IsActive    bool               `bson:"is_active" json:"is_active"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

type CourseRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=200"`
	Description string `json:"description,omitempty"`
	Code        string `json:"code,omitempty"`
	Instructor  string `json:"instructor,omitempty"`
}
