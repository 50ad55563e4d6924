package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"course-assistant-platform/internal/config"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		GeminiAPIKey:      "test-key",
		GeminiAPIURL:      baseURL,
		GeminiModel:       "gemini-2.0-flash",
		GeminiTemperature: 0.7,
		GeminiMaxTokens:   2000,
		GeminiTopP:        0.95,
		GeminiTopK:        40,
	}
}

func candidateResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"parts": []map[string]string{{"text": text}},
			}},
		},
	}
}

func TestGenerateAnswerStructuredSuccess(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(candidateResponse("Recursion is a function calling itself."))
	}))
	defer server.Close()

	c := NewCompletionClient(testConfig(server.URL))
	completion := c.GenerateAnswer(context.Background(),
		"You are a tutor.",
		[]ContextItem{{Source: "Lecture 1", Content: "Recursion basics."}},
		[]ChatTurn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		"What is recursion?")

	if completion.Content != "Recursion is a function calling itself." {
		t.Errorf("content = %q", completion.Content)
	}
	if completion.Usage == nil || completion.Usage.TotalTokens <= 0 {
		t.Errorf("expected positive token estimate, got %+v", completion.Usage)
	}

	// The structured payload leads with two system entries: instructions
	// then context, followed by history and the new message.
	if len(captured.Contents) != 5 {
		t.Fatalf("expected 5 contents, got %d", len(captured.Contents))
	}
	if captured.Contents[0].Role != "system" || captured.Contents[1].Role != "system" {
		t.Errorf("leading roles = %q, %q", captured.Contents[0].Role, captured.Contents[1].Role)
	}
	if !strings.Contains(captured.Contents[1].Parts[0].Text, "--- From: Lecture 1 ---") {
		t.Errorf("context entry missing source header: %q", captured.Contents[1].Parts[0].Text)
	}
	if captured.Contents[4].Role != "user" || captured.Contents[4].Parts[0].Text != "What is recursion?" {
		t.Errorf("final entry = %+v", captured.Contents[4])
	}
	if captured.GenerationConfig.Temperature != 0.7 || captured.GenerationConfig.TopK != 40 {
		t.Errorf("generation config = %+v", captured.GenerationConfig)
	}
}

func TestGenerateAnswerFallsBackToFlattenedFormat(t *testing.T) {
	var requests []generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		requests = append(requests, req)

		if len(requests) == 1 {
			// Reject the structured format the way the live endpoint
			// rejects system roles.
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{
					"code":    400,
					"message": "Please use a valid role: user, model.",
					"status":  "INVALID_ARGUMENT",
				},
			})
			return
		}
		json.NewEncoder(w).Encode(candidateResponse("Flattened answer."))
	}))
	defer server.Close()

	c := NewCompletionClient(testConfig(server.URL))
	completion := c.GenerateAnswer(context.Background(),
		"You are a tutor.",
		[]ContextItem{{Source: "Notes", Content: "Stacks and queues."}},
		[]ChatTurn{{Role: "user", Content: "earlier question"}},
		"Tell me about stacks.")

	if completion.Content != "Flattened answer." {
		t.Errorf("content = %q", completion.Content)
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}

	retry := requests[1]
	if len(retry.Contents) != 1 || retry.Contents[0].Role != "" {
		t.Fatalf("retry should carry a single role-less content, got %+v", retry.Contents)
	}
	prompt := retry.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "User: earlier question") {
		t.Errorf("flattened prompt missing history: %q", prompt)
	}
	if !strings.HasSuffix(prompt, "User: Tell me about stacks.\n\nAssistant:") {
		t.Errorf("flattened prompt tail = %q", prompt)
	}
}

func TestGenerateAnswerNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer server.Close()

	c := NewCompletionClient(testConfig(server.URL))
	completion := c.GenerateAnswer(context.Background(), "sys", nil, nil, "question")
	if completion.Content != msgNoAnswer {
		t.Errorf("content = %q", completion.Content)
	}
}

func TestGenerateAnswerTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	// Both the structured call and the flattened retry fail; only then
	// does the apology surface.
	c := NewCompletionClient(testConfig(server.URL))
	completion := c.GenerateAnswer(context.Background(), "sys", nil, nil, "question")
	if completion.Content != msgServiceTrouble {
		t.Errorf("content = %q", completion.Content)
	}
	if completion.Usage != nil {
		t.Errorf("expected nil usage on failure, got %+v", completion.Usage)
	}
}

func TestGenerateAnswerRetriesFlattenedAfterTransportFailure(t *testing.T) {
	var calls int
	var retry generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			// Drop the connection mid-request so the client sees a
			// transport error rather than an error payload.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("response writer does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("hijack: %v", err)
			}
			conn.Close()
			return
		}
		json.NewDecoder(r.Body).Decode(&retry)
		json.NewEncoder(w).Encode(candidateResponse("Recovered answer."))
	}))
	defer server.Close()

	c := NewCompletionClient(testConfig(server.URL))
	completion := c.GenerateAnswer(context.Background(),
		"You are a tutor.",
		[]ContextItem{{Source: "Notes", Content: "Stacks and queues."}},
		[]ChatTurn{{Role: "user", Content: "earlier question"}},
		"Tell me about stacks.")

	if calls != 2 {
		t.Fatalf("expected 2 requests, got %d", calls)
	}
	if completion.Content != "Recovered answer." {
		t.Errorf("content = %q", completion.Content)
	}
	if len(retry.Contents) != 1 || retry.Contents[0].Role != "" {
		t.Fatalf("retry should carry a single role-less content, got %+v", retry.Contents)
	}
	prompt := retry.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "--- From: Notes ---") {
		t.Errorf("flattened prompt missing context: %q", prompt)
	}
	if !strings.HasSuffix(prompt, "User: Tell me about stacks.\n\nAssistant:") {
		t.Errorf("flattened prompt tail = %q", prompt)
	}
}

func TestFormatContext(t *testing.T) {
	got := formatContext([]ContextItem{
		{Source: "Week 1", Content: "alpha"},
		{Source: "Week 2", Content: "beta"},
	})
	want := "Relevant course materials:\n--- From: Week 1 ---\nalpha\n\n--- From: Week 2 ---\nbeta\n\n"
	if got != want {
		t.Errorf("formatContext = %q, want %q", got, want)
	}
}
