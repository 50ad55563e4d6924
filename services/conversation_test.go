package services

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"course-assistant-platform/internal/ai"
	"course-assistant-platform/models"
)

type fakeConversationStore struct {
	history     []models.ChatMessage
	inserted    []*models.ChatMessage
	insertFails int // fail the nth insert (1-based), 0 for never
}

func (f *fakeConversationStore) GetOrCreateSession(ctx context.Context, token string, courseID primitive.ObjectID, nickname string) (*models.ChatSession, error) {
	return &models.ChatSession{ID: primitive.NewObjectID(), SessionToken: token, CourseID: courseID, Nickname: nickname}, nil
}

func (f *fakeConversationStore) InsertMessage(ctx context.Context, msg *models.ChatMessage) error {
	if f.insertFails > 0 && len(f.inserted)+1 == f.insertFails {
		return errors.New("insert failed")
	}
	f.inserted = append(f.inserted, msg)
	return nil
}

func (f *fakeConversationStore) RecentMessages(ctx context.Context, sessionID primitive.ObjectID, limit int) ([]models.ChatMessage, error) {
	return f.history, nil
}

type fakeBackend struct {
	completion *ai.Completion

	gotContext []ai.ContextItem
	gotHistory []ai.ChatTurn
	gotMessage string
}

func (f *fakeBackend) GenerateAnswer(ctx context.Context, systemPrompt string, contextItems []ai.ContextItem, history []ai.ChatTurn, userMessage string) *ai.Completion {
	f.gotContext = contextItems
	f.gotHistory = history
	f.gotMessage = userMessage
	return f.completion
}

func newTestConversation(store *fakeConversationStore, backend *fakeBackend, retrievalData *fakeRetrievalStore) *Conversation {
	if retrievalData == nil {
		retrievalData = &fakeRetrievalStore{}
	}
	return NewConversation(store, NewRetriever(retrievalData), backend, "gemini-2.0-flash")
}

func TestRespondRecordsBothMessages(t *testing.T) {
	store := &fakeConversationStore{}
	backend := &fakeBackend{completion: &ai.Completion{
		Content: "An answer.",
		Usage:   &ai.Usage{PromptTokens: 100, CompletionTokens: 25, TotalTokens: 125},
	}}
	conv := newTestConversation(store, backend, &fakeRetrievalStore{
		contentMatches: namedChunks(3, "Lecture 2"),
	})

	session := &models.ChatSession{ID: primitive.NewObjectID(), CourseID: primitive.NewObjectID()}
	resp, err := conv.Respond(context.Background(), session, "What is a closure?")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if resp.Content != "An answer." {
		t.Errorf("content = %q", resp.Content)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Title != "Lecture 2" {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if resp.Metadata.Model != "gemini-2.0-flash" || resp.Metadata.TotalTokens != 125 {
		t.Errorf("metadata = %+v", resp.Metadata)
	}

	if len(store.inserted) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(store.inserted))
	}
	user, assistant := store.inserted[0], store.inserted[1]
	if user.Role != models.RoleUser || user.Content != "What is a closure?" {
		t.Errorf("user message = %+v", user)
	}
	if assistant.Role != models.RoleAssistant || assistant.Content != "An answer." {
		t.Errorf("assistant message = %+v", assistant)
	}
	if len(assistant.Sources) != 1 {
		t.Errorf("assistant sources = %+v", assistant.Sources)
	}
}

func TestRespondHistoryExcludesCurrentMessage(t *testing.T) {
	store := &fakeConversationStore{history: []models.ChatMessage{
		{Role: models.RoleUser, Content: "first question"},
		{Role: models.RoleAssistant, Content: "first answer"},
	}}
	backend := &fakeBackend{completion: &ai.Completion{Content: "ok"}}
	conv := newTestConversation(store, backend, nil)

	session := &models.ChatSession{ID: primitive.NewObjectID(), CourseID: primitive.NewObjectID()}
	if _, err := conv.Respond(context.Background(), session, "second question"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if len(backend.gotHistory) != 2 {
		t.Fatalf("expected 2 history turns, got %d", len(backend.gotHistory))
	}
	for _, turn := range backend.gotHistory {
		if turn.Content == "second question" {
			t.Error("current message leaked into history")
		}
	}
	if backend.gotMessage != "second question" {
		t.Errorf("user message = %q", backend.gotMessage)
	}
}

func TestRespondPassesContextWithSources(t *testing.T) {
	store := &fakeConversationStore{}
	backend := &fakeBackend{completion: &ai.Completion{Content: "ok"}}
	conv := newTestConversation(store, backend, &fakeRetrievalStore{
		contentMatches: namedChunks(3, "Slides Week 4"),
	})

	session := &models.ChatSession{ID: primitive.NewObjectID(), CourseID: primitive.NewObjectID()}
	if _, err := conv.Respond(context.Background(), session, "question about trees"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if len(backend.gotContext) != 3 {
		t.Fatalf("expected 3 context items, got %d", len(backend.gotContext))
	}
	for _, item := range backend.gotContext {
		if item.Source != "Slides Week 4" {
			t.Errorf("context source = %q", item.Source)
		}
	}
}

func TestRespondEmptyCourseGetsPlaceholderContext(t *testing.T) {
	store := &fakeConversationStore{}
	backend := &fakeBackend{completion: &ai.Completion{Content: "ok"}}
	conv := newTestConversation(store, backend, &fakeRetrievalStore{})

	session := &models.ChatSession{ID: primitive.NewObjectID(), CourseID: primitive.NewObjectID()}
	resp, err := conv.Respond(context.Background(), session, "anything")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}

	if len(backend.gotContext) != 1 || backend.gotContext[0].Content != placeholderChunkContent {
		t.Errorf("context = %+v", backend.gotContext)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].Title != placeholderSourceTitle {
		t.Errorf("sources = %+v", resp.Sources)
	}
}

func TestRespondSurvivesAssistantInsertFailure(t *testing.T) {
	store := &fakeConversationStore{insertFails: 2}
	backend := &fakeBackend{completion: &ai.Completion{Content: "the answer"}}
	conv := newTestConversation(store, backend, nil)

	session := &models.ChatSession{ID: primitive.NewObjectID(), CourseID: primitive.NewObjectID()}
	resp, err := conv.Respond(context.Background(), session, "question")
	if err != nil {
		t.Fatalf("Respond should tolerate a failed assistant insert: %v", err)
	}
	if resp.Content != "the answer" {
		t.Errorf("content = %q", resp.Content)
	}
}
