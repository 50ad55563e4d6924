package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"course-assistant-platform/models"
)

type exportStore interface {
	FindSession(ctx context.Context, id primitive.ObjectID) (*models.ChatSession, error)
	ListMessages(ctx context.Context, sessionID primitive.ObjectID) ([]models.ChatMessage, error)
}

// TranscriptData is a session's conversation prepared for download.
type TranscriptData struct {
	SessionID    string              `json:"session_id"`
	SessionToken string              `json:"session_token"`
	Nickname     string              `json:"nickname,omitempty"`
	ExportedAt   time.Time           `json:"exported_at"`
	Messages     []TranscriptMessage `json:"messages"`
	Summary      TranscriptSummary   `json:"summary"`
}

type TranscriptMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   string    `json:"sources,omitempty"`
	Tokens    int       `json:"tokens,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type TranscriptSummary struct {
	TotalMessages     int `json:"total_messages"`
	StudentMessages   int `json:"student_messages"`
	AssistantMessages int `json:"assistant_messages"`
	TotalTokens       int `json:"total_tokens"`
}

// Exporter produces downloadable chat transcripts for course staff.
type Exporter struct {
	store exportStore
}

func NewExporter(store exportStore) *Exporter {
	return &Exporter{store: store}
}

// Transcript loads the session's full history and shapes it for export.
func (e *Exporter) Transcript(ctx context.Context, sessionID primitive.ObjectID) (*TranscriptData, error) {
	session, err := e.store.FindSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	messages, err := e.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	data := &TranscriptData{
		SessionID:    session.ID.Hex(),
		SessionToken: session.SessionToken,
		Nickname:     session.Nickname,
		ExportedAt:   time.Now(),
		Messages:     make([]TranscriptMessage, len(messages)),
	}

	for i, msg := range messages {
		entry := TranscriptMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
		}
		if len(msg.Sources) > 0 {
			titles := make([]string, len(msg.Sources))
			for j, src := range msg.Sources {
				titles[j] = src.Title
			}
			entry.Sources = strings.Join(titles, "; ")
		}
		if msg.Metadata != nil {
			entry.Tokens = msg.Metadata.TotalTokens
			data.Summary.TotalTokens += msg.Metadata.TotalTokens
		}
		data.Messages[i] = entry

		switch msg.Role {
		case models.RoleUser:
			data.Summary.StudentMessages++
		case models.RoleAssistant:
			data.Summary.AssistantMessages++
		}
	}
	data.Summary.TotalMessages = len(messages)
	return data, nil
}

// JSON renders the transcript as indented JSON.
func (e *Exporter) JSON(data *TranscriptData) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

// Excel renders the transcript as an xlsx workbook with a message sheet and
// a summary sheet.
func (e *Exporter) Excel(data *TranscriptData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Transcript"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"Role", "Message", "Sources", "Tokens", "Timestamp"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, msg := range data.Messages {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), msg.Role)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), msg.Content)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), msg.Sources)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), msg.Tokens)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), msg.Timestamp.Format("2006-01-02 15:04:05"))
	}

	f.SetColWidth(sheetName, "B", "B", 80)
	f.SetColWidth(sheetName, "C", "C", 40)

	summarySheet := "Summary"
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	summaryRows := [][]interface{}{
		{"Session ID", data.SessionID},
		{"Nickname", data.Nickname},
		{"Exported At", data.ExportedAt.Format("2006-01-02 15:04:05")},
		{"Total Messages", data.Summary.TotalMessages},
		{"Student Messages", data.Summary.StudentMessages},
		{"Assistant Messages", data.Summary.AssistantMessages},
		{"Total Tokens", data.Summary.TotalTokens},
	}
	for i, row := range summaryRows {
		for j, cell := range row {
			f.SetCellValue(summarySheet, fmt.Sprintf("%c%d", 'A'+j, i+1), cell)
		}
	}

	f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
