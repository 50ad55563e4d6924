package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"course-assistant-platform/internal/config"
	"course-assistant-platform/internal/logger"
)

// User-facing fallback texts. These ship to students as chat content, so
// they stay apologetic rather than technical.
const (
	msgNoAnswer       = "Sorry, I could not generate a response."
	msgRequestFailed  = "Sorry, I encountered an error while trying to answer your question. Please try again later."
	msgServiceTrouble = "Sorry, there was an error connecting to the AI service. Please try again later."
	msgHighDemand     = "I'm experiencing high demand right now. Please try again in a moment."
)

// ChatTurn is one prior exchange in a session, role "user" or "assistant".
type ChatTurn struct {
	Role    string
	Content string
}

// ContextItem is one retrieved excerpt with the material title it came from.
type ContextItem struct {
	Source  string
	Content string
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the answer text plus estimated token usage. Usage is nil
// when the request never produced a model answer.
type Completion struct {
	Content string
	Usage   *Usage
}

// CompletionClient talks to the Gemini generateContent REST endpoint.
// Requests go out in a role-structured format first; when the API rejects
// it, the same conversation is retried flattened into a single prompt.
type CompletionClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string

	temperature float64
	maxTokens   int
	topP        float64
	topK        int

	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewCompletionClient(cfg *config.Config) *CompletionClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &CompletionClient{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		baseURL:     cfg.GeminiAPIURL,
		apiKey:      cfg.GeminiAPIKey,
		model:       cfg.GeminiModel,
		temperature: cfg.GeminiTemperature,
		maxTokens:   cfg.GeminiMaxTokens,
		topP:        cfg.GeminiTopP,
		topK:        cfg.GeminiTopK,
		breaker:     breaker,
		limiter:     rate.NewLimiter(rate.Limit(10.0/60.0), 2),
	}
}

// Ping sends a minimal completion request and surfaces transport and API
// errors directly instead of falling back to apology text. Operators use it
// to verify credentials and connectivity.
func (c *CompletionClient) Ping(ctx context.Context) error {
	payload := &generateRequest{
		Contents:         []requestContent{{Parts: []requestPart{{Text: "Reply with the single word OK."}}}},
		GenerationConfig: c.generationConfig(),
	}
	data, err := c.post(ctx, payload)
	if err != nil {
		return err
	}
	if data.Error != nil {
		return fmt.Errorf("API error %d (%s): %s", data.Error.Code, data.Error.Status, data.Error.Message)
	}
	if answerText(data) == "" {
		return fmt.Errorf("no candidates in response")
	}
	return nil
}

// request/response shapes for the generateContent REST endpoint

type requestPart struct {
	Text string `json:"text"`
}

type requestContent struct {
	Role  string        `json:"role,omitempty"`
	Parts []requestPart `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type generateRequest struct {
	Contents         []requestContent `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []requestPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error"`
}

// GenerateAnswer asks the model for a reply to userMessage given the tutor
// instructions, retrieved context and recent history. It never returns an
// error for API-level failures: students always get a completion, even if
// its content is an apology.
func (c *CompletionClient) GenerateAnswer(ctx context.Context, systemPrompt string, contextItems []ContextItem, history []ChatTurn, userMessage string) *Completion {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_answer")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.model),
		attribute.Int("gemini.context_items", len(contextItems)),
		attribute.Int("gemini.history_turns", len(history)),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return &Completion{Content: msgHighDemand}
	}

	contextText := formatContext(contextItems)

	structured := c.structuredPayload(systemPrompt, contextText, history, userMessage)
	promptEstimate := payloadTokenEstimate(structured.Contents)

	data, err := c.post(ctx, structured)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
			return &Completion{Content: msgHighDemand}
		}
		// Transport failures get the same one-shot flattened retry as an
		// error payload; only a second failure surfaces the apology.
		span.SetAttributes(attribute.Bool("gemini.error", true))
		span.SetAttributes(attribute.Bool("gemini.fallback_format", true))
		logger.Warn("Structured Gemini request failed, retrying flattened", "error", err)
		return c.generateFlattened(ctx, span, systemPrompt, contextText, history, userMessage)
	}

	if data.Error != nil {
		// The structured format carries system-role entries the endpoint
		// may reject. Retry with everything flattened into one prompt.
		logger.Warn("Structured Gemini request rejected, retrying flattened",
			"error_code", data.Error.Code,
			"error_status", data.Error.Status,
			"error_message", data.Error.Message)
		span.SetAttributes(attribute.Bool("gemini.fallback_format", true))
		return c.generateFlattened(ctx, span, systemPrompt, contextText, history, userMessage)
	}

	content := answerText(data)
	span.SetAttributes(attribute.Bool("gemini.success", true))
	return &Completion{
		Content: content,
		Usage:   estimateUsage(promptEstimate, content),
	}
}

func (c *CompletionClient) generateFlattened(ctx context.Context, span trace.Span, systemPrompt, contextText string, history []ChatTurn, userMessage string) *Completion {
	prompt := flattenPrompt(systemPrompt, contextText, history, userMessage)
	payload := &generateRequest{
		Contents:         []requestContent{{Parts: []requestPart{{Text: prompt}}}},
		GenerationConfig: c.generationConfig(),
	}

	data, err := c.post(ctx, payload)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return &Completion{Content: msgHighDemand}
		}
		logger.Error("Flattened Gemini request failed", "error", err)
		return &Completion{Content: msgServiceTrouble}
	}
	if data.Error != nil {
		logger.Error("Flattened Gemini request rejected",
			"error_message", data.Error.Message)
		return &Completion{Content: msgRequestFailed}
	}

	content := answerText(data)
	span.SetAttributes(attribute.Bool("gemini.success", true))
	return &Completion{
		Content: content,
		Usage:   estimateUsage(len(prompt)/4, content),
	}
}

func (c *CompletionClient) post(ctx context.Context, payload *generateRequest) (*generateResponse, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		var data generateResponse
		if err := json.Unmarshal(respBody, &data); err != nil {
			return nil, fmt.Errorf("malformed response (status %d): %w", resp.StatusCode, err)
		}
		return &data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*generateResponse), nil
}

func (c *CompletionClient) structuredPayload(systemPrompt, contextText string, history []ChatTurn, userMessage string) *generateRequest {
	contents := []requestContent{
		{Role: "system", Parts: []requestPart{{Text: systemPrompt}}},
		{Role: "system", Parts: []requestPart{{Text: contextText}}},
	}
	for _, turn := range history {
		role := "assistant"
		if turn.Role == "user" {
			role = "user"
		}
		contents = append(contents, requestContent{
			Role:  role,
			Parts: []requestPart{{Text: turn.Content}},
		})
	}
	contents = append(contents, requestContent{
		Role:  "user",
		Parts: []requestPart{{Text: userMessage}},
	})

	return &generateRequest{
		Contents:         contents,
		GenerationConfig: c.generationConfig(),
	}
}

func (c *CompletionClient) generationConfig() generationConfig {
	return generationConfig{
		Temperature:     c.temperature,
		MaxOutputTokens: c.maxTokens,
		TopP:            c.topP,
		TopK:            c.topK,
	}
}

// formatContext renders retrieved excerpts with their material titles so
// the model can cite sources by name.
func formatContext(items []ContextItem) string {
	var buf bytes.Buffer
	buf.WriteString("Relevant course materials:\n")
	for _, item := range items {
		fmt.Fprintf(&buf, "--- From: %s ---\n%s\n\n", item.Source, item.Content)
	}
	return buf.String()
}

// flattenPrompt folds instructions, context and history into one text block
// for the single-part fallback request.
func flattenPrompt(systemPrompt, contextText string, history []ChatTurn, userMessage string) string {
	var buf bytes.Buffer
	buf.WriteString(systemPrompt)
	buf.WriteString("\n\n")
	buf.WriteString(contextText)
	buf.WriteString("\n\n")
	for _, turn := range history {
		role := "Assistant"
		if turn.Role == "user" {
			role = "User"
		}
		fmt.Fprintf(&buf, "%s: %s\n\n", role, turn.Content)
	}
	fmt.Fprintf(&buf, "User: %s\n\nAssistant:", userMessage)
	return buf.String()
}

func answerText(data *generateResponse) string {
	if len(data.Candidates) == 0 || len(data.Candidates[0].Content.Parts) == 0 {
		return msgNoAnswer
	}
	return data.Candidates[0].Content.Parts[0].Text
}

// estimateUsage approximates tokens at 4 characters each. The REST response
// does not report usage, so this keeps session metadata populated.
func estimateUsage(promptTokens int, content string) *Usage {
	completionTokens := len(content) / 4
	return &Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

func payloadTokenEstimate(contents []requestContent) int {
	encoded, err := json.Marshal(contents)
	if err != nil {
		return 0
	}
	return len(encoded) / 4
}
