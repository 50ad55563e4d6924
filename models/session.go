package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatSession is an anonymous course-scoped conversation, keyed by an opaque
// token the client holds. Clearing history removes messages but keeps the
// session record.
type ChatSession struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionToken string             `bson:"session_token" json:"session_token"`
	CourseID     primitive.ObjectID `bson:"course_id" json:"course_id"`
	Nickname     string             `bson:"nickname,omitempty" json:"nickname,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// ChatMessage belongs to exactly one session.
type ChatMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID primitive.ObjectID `bson:"session_id" json:"session_id"`
	Role      string             `bson:"role" json:"role"`
	Content   string             `bson:"content" json:"content"`
	Sources   []SourceRef        `bson:"sources,omitempty" json:"sources,omitempty"`
	Metadata  *MessageMetadata   `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// SourceRef cites one material that contributed context to an answer,
// with a representative chunk.
type SourceRef struct {
	MaterialID string `bson:"material_id" json:"material_id"`
	Title      string `bson:"title" json:"title"`
	ChunkID    string `bson:"chunk_id" json:"chunk_id"`
}

// MessageMetadata carries model identity and token usage for assistant
// messages. Token counts are length-based estimates when the backend does
// not report usage.
type MessageMetadata struct {
	Model            string `bson:"model,omitempty" json:"model,omitempty"`
	PromptTokens     int    `bson:"prompt_tokens,omitempty" json:"prompt_tokens,omitempty"`
	CompletionTokens int    `bson:"completion_tokens,omitempty" json:"completion_tokens,omitempty"`
	TotalTokens      int    `bson:"total_tokens,omitempty" json:"total_tokens,omitempty"`
}

type ChatRequest struct {
	SessionToken string `json:"session_token" binding:"required"`
	Message      string `json:"message" binding:"required,min=1,max=2000"`
	Nickname     string `json:"nickname,omitempty"`
}

type ChatResponse struct {
	Content   string           `json:"content"`
	Sources   []SourceRef      `json:"sources"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
