package services

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"course-assistant-platform/models"
)

type fakeExportStore struct {
	session  *models.ChatSession
	messages []models.ChatMessage
}

func (f *fakeExportStore) FindSession(ctx context.Context, id primitive.ObjectID) (*models.ChatSession, error) {
	return f.session, nil
}

func (f *fakeExportStore) ListMessages(ctx context.Context, sessionID primitive.ObjectID) ([]models.ChatMessage, error) {
	return f.messages, nil
}

func exportFixture() *fakeExportStore {
	sessionID := primitive.NewObjectID()
	return &fakeExportStore{
		session: &models.ChatSession{
			ID:           sessionID,
			SessionToken: "tok-123",
			Nickname:     "sam",
		},
		messages: []models.ChatMessage{
			{
				SessionID: sessionID,
				Role:      models.RoleUser,
				Content:   "What is dynamic programming?",
				CreatedAt: time.Now().Add(-time.Minute),
			},
			{
				SessionID: sessionID,
				Role:      models.RoleAssistant,
				Content:   "It solves problems by reusing subproblem results.",
				Sources: []models.SourceRef{
					{Title: "Lecture 7"},
					{Title: "Problem Set 3"},
				},
				Metadata:  &models.MessageMetadata{TotalTokens: 150},
				CreatedAt: time.Now(),
			},
		},
	}
}

func TestTranscriptSummarizes(t *testing.T) {
	e := NewExporter(exportFixture())

	data, err := e.Transcript(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}

	if data.Nickname != "sam" {
		t.Errorf("nickname = %q", data.Nickname)
	}
	if data.Summary.TotalMessages != 2 || data.Summary.StudentMessages != 1 || data.Summary.AssistantMessages != 1 {
		t.Errorf("summary = %+v", data.Summary)
	}
	if data.Summary.TotalTokens != 150 {
		t.Errorf("total tokens = %d", data.Summary.TotalTokens)
	}
	if data.Messages[1].Sources != "Lecture 7; Problem Set 3" {
		t.Errorf("sources = %q", data.Messages[1].Sources)
	}
}

func TestTranscriptJSONRoundTrips(t *testing.T) {
	e := NewExporter(exportFixture())
	data, err := e.Transcript(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}

	raw, err := e.JSON(data)
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded TranscriptData
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Messages) != 2 {
		t.Errorf("decoded %d messages", len(decoded.Messages))
	}
}

func TestTranscriptExcelProducesWorkbook(t *testing.T) {
	e := NewExporter(exportFixture())
	data, err := e.Transcript(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}

	raw, err := e.Excel(data)
	if err != nil {
		t.Fatalf("Excel: %v", err)
	}
	// xlsx files are zip archives.
	if !bytes.HasPrefix(raw, []byte("PK")) {
		t.Errorf("output does not look like an xlsx file")
	}
}
