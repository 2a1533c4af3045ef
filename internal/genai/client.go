// internal/genai/client.go
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultModel is used when no model is configured
const DefaultModel = openai.GPT3Dot5Turbo

const defaultTimeout = 10 * time.Second

// ErrEmptyCompletion is returned when the model produced no choices
var ErrEmptyCompletion = errors.New("genai: empty completion")

// Config configures the completion client
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, for OpenAI-compatible endpoints
	Timeout time.Duration
}

// Client is a thin wrapper around an OpenAI-compatible chat-completions
// API that always requests and parses a strict JSON payload
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a completion client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		api:     openai.NewClientWithConfig(apiCfg),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// CompleteJSON runs one chat completion and unmarshals the response body
// into out. Any transport, quota, or parse failure is returned so the
// caller can fall back to its deterministic path.
func (c *Client) CompleteJSON(ctx context.Context, system, user string, temperature float32, maxTokens int, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return fmt.Errorf("genai: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ErrEmptyCompletion
	}

	payload := stripFences(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("genai: parsing completion: %w", err)
	}
	return nil
}

// stripFences removes a markdown code fence the model may wrap its JSON in
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
