package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"course-assistant-platform/models"
)

// GetOrCreateSession resolves a chat session by its client token within a
// course, creating it on first contact. A concurrent create losing the race
// to the unique index falls back to reading the winner's document.
func (s *Store) GetOrCreateSession(ctx context.Context, token string, courseID primitive.ObjectID, nickname string) (*models.ChatSession, error) {
	filter := bson.M{"session_token": token, "course_id": courseID}

	var session models.ChatSession
	err := s.sessions.FindOne(ctx, filter).Decode(&session)
	if err == nil {
		return &session, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	session = models.ChatSession{
		ID:           primitive.NewObjectID(),
		SessionToken: token,
		CourseID:     courseID,
		Nickname:     nickname,
		CreatedAt:    time.Now(),
	}
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if lookupErr := s.sessions.FindOne(ctx, filter).Decode(&session); lookupErr == nil {
				return &session, nil
			}
		}
		return nil, err
	}
	return &session, nil
}

func (s *Store) FindSession(ctx context.Context, id primitive.ObjectID) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := s.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) InsertMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.messages.InsertOne(ctx, msg)
	return err
}

// RecentMessages returns the session's last limit messages in chronological
// order, oldest first, ready to splice into a prompt.
func (s *Store) RecentMessages(ctx context.Context, sessionID primitive.ObjectID, limit int) ([]models.ChatMessage, error) {
	cursor, err := s.messages.Find(ctx, bson.M{"session_id": sessionID},
		optionsFindSortLimit(bson.D{{Key: "created_at", Value: -1}}, int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []models.ChatMessage
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListMessages returns the session's full history, oldest first.
func (s *Store) ListMessages(ctx context.Context, sessionID primitive.ObjectID) ([]models.ChatMessage, error) {
	cursor, err := s.messages.Find(ctx, bson.M{"session_id": sessionID},
		optionsFindSortLimit(bson.D{{Key: "created_at", Value: 1}}, 0))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []models.ChatMessage
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Store) ClearSessionMessages(ctx context.Context, sessionID primitive.ObjectID) (int64, error) {
	res, err := s.messages.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
