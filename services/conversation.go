package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"course-assistant-platform/internal/ai"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/models"
)

const historyLimit = 10

// tutorSystemPrompt frames every completion. The repeated "you have the
// materials" instruction matters: without it the model tends to ask
// students to paste in their own course content.
const tutorSystemPrompt = "You are a professional and knowledgeable tutor for this course. Your role is to help students understand the course material through interactive, conversational guidance. " +
	"You already have access to all the course materials in the system - NEVER ask the student to provide materials. " +
	"Base your answers on the course materials provided in the context, but feel free to elaborate with relevant examples and explanations to enhance understanding. " +
	"Maintain a warm, encouraging tone while being clear and precise. Remember previous parts of the conversation to provide continuity. " +
	"If a student asks for clarification or expansion on a topic, provide more depth while keeping explanations accessible. " +
	"If you don't know the answer based on the materials, acknowledge this honestly rather than inventing information. " +
	"When citing sources, mention the material title once in a natural way. " +
	"Engage with the student by occasionally asking thoughtful follow-up questions to check understanding or prompt deeper thinking. " +
	"For first-time interactions, welcome the student and offer to help with any questions about the course content. " +
	"CRITICAL INSTRUCTION: You ALWAYS have course materials available to you in the context. NEVER tell the student you don't have access to course materials or ask them to provide materials."

type conversationStore interface {
	GetOrCreateSession(ctx context.Context, token string, courseID primitive.ObjectID, nickname string) (*models.ChatSession, error)
	InsertMessage(ctx context.Context, msg *models.ChatMessage) error
	RecentMessages(ctx context.Context, sessionID primitive.ObjectID, limit int) ([]models.ChatMessage, error)
}

// CompletionBackend generates an answer from prompt pieces. Satisfied by
// ai.CompletionClient; tests plug in a canned implementation.
type CompletionBackend interface {
	GenerateAnswer(ctx context.Context, systemPrompt string, contextItems []ai.ContextItem, history []ai.ChatTurn, userMessage string) *ai.Completion
}

// Conversation answers student questions: it grounds each question in
// retrieved course content, carries recent session history for continuity,
// and records both sides of the exchange.
type Conversation struct {
	store     conversationStore
	retriever *Retriever
	backend   CompletionBackend
	modelName string
}

func NewConversation(store conversationStore, retriever *Retriever, backend CompletionBackend, modelName string) *Conversation {
	return &Conversation{
		store:     store,
		retriever: retriever,
		backend:   backend,
		modelName: modelName,
	}
}

// Respond handles one student message in the session and returns the
// assistant's reply with source citations.
//
// History is read before the incoming message is stored so the prompt
// carries it exactly once, as the explicit current question.
func (c *Conversation) Respond(ctx context.Context, session *models.ChatSession, userMessage string) (*models.ChatResponse, error) {
	history, err := c.store.RecentMessages(ctx, session.ID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	if err := c.store.InsertMessage(ctx, &models.ChatMessage{
		SessionID: session.ID,
		Role:      models.RoleUser,
		Content:   userMessage,
	}); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	chunks := c.retriever.ContextForQuestion(ctx, session.CourseID, userMessage)
	sources := ExtractSources(chunks)

	contextItems := make([]ai.ContextItem, len(chunks))
	for i, chunk := range chunks {
		contextItems[i] = ai.ContextItem{
			Source:  chunk.MaterialTitle,
			Content: chunk.Content,
		}
	}

	turns := make([]ai.ChatTurn, len(history))
	for i, msg := range history {
		turns[i] = ai.ChatTurn{Role: msg.Role, Content: msg.Content}
	}

	completion := c.backend.GenerateAnswer(ctx, tutorSystemPrompt, contextItems, turns, userMessage)

	metadata := &models.MessageMetadata{Model: c.modelName}
	if completion.Usage != nil {
		metadata.PromptTokens = completion.Usage.PromptTokens
		metadata.CompletionTokens = completion.Usage.CompletionTokens
		metadata.TotalTokens = completion.Usage.TotalTokens
	}

	assistant := &models.ChatMessage{
		SessionID: session.ID,
		Role:      models.RoleAssistant,
		Content:   completion.Content,
		Sources:   sources,
		Metadata:  metadata,
	}
	if err := c.store.InsertMessage(ctx, assistant); err != nil {
		// The student already saw the answer being generated; losing the
		// record is worth a log line but not a failed request.
		logger.Error("Failed to store assistant message",
			"session_id", session.ID.Hex(), "error", err)
	}

	return &models.ChatResponse{
		Content:   completion.Content,
		Sources:   sources,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}, nil
}

// Bootstrap resolves the session for a client token, creating it when new.
func (c *Conversation) Bootstrap(ctx context.Context, token string, courseID primitive.ObjectID, nickname string) (*models.ChatSession, error) {
	return c.store.GetOrCreateSession(ctx, token, courseID, nickname)
}
