package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quiz-labs/quizgen/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// callTimeout bounds every outbound model call. A timeout surfaces as the
// same degradable failure the caller already handles.
const callTimeout = 90 * time.Second

// Client wraps an OpenAI-compatible API client for question generation,
// subject/topic classification and narrative reporting.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies the endpoint answers a trivial completion request.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	_, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

// GenerateQuestions produces the requested number of multiple-choice
// questions. Any question the model emits outside the fixed template fails
// the whole batch, so a non-nil result is always fully parsed.
func (c *Client) GenerateQuestions(ctx context.Context, req model.GenerationRequest) ([]model.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	prompt := buildGenerationPrompt(req)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("generation API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("generation returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("generation response", "raw_len", len(raw))

	questions, err := ParseQuestions(raw)
	if err != nil {
		return nil, fmt.Errorf("parse generated quiz: %w", err)
	}
	if len(questions) != req.Count {
		slog.Warn("generator returned unexpected question count",
			"want", req.Count, "got", len(questions))
	}
	return questions, nil
}

// Classification is the classifier's verdict for one question.
type Classification struct {
	Subject string `json:"subject"`
	Topic   string `json:"topic"`
}

// ClassifyQuestion infers the subject and topic of a question. Targets carry
// the quiz's subject or topic list as context. The caller substitutes
// defaults on error; this method never needs to succeed.
func (c *Client) ClassifyQuestion(ctx context.Context, questionText, class string, targets model.TargetList) (Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	prompt := buildClassifyPrompt(questionText, class, targets)
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return Classification{}, fmt.Errorf("classification API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Classification{}, fmt.Errorf("classification returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	var result Classification
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return Classification{}, fmt.Errorf("parse classification response: %w (raw: %s)", err, raw)
	}
	return result, nil
}

// PerformanceReport summarizes a quiz's results in the given language.
func (c *Client) PerformanceReport(ctx context.Context, results []model.EvaluationResult, language string) (string, error) {
	return c.narrate(ctx, buildReportPrompt(results, language))
}

// PersonalizedFeedback produces encouraging, actionable feedback for the
// student in the given language.
func (c *Client) PersonalizedFeedback(ctx context.Context, results []model.EvaluationResult, language string) (string, error) {
	return c.narrate(ctx, buildFeedbackPrompt(results, language))
}

func (c *Client) narrate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("narrative API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("narrative returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// extractJSONObject trims any prose around the first top-level JSON object.
// Smaller models wrap JSON in explanation even when asked not to.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
