// Package copygen provides GenAI-generated contextual copy using the OpenAI API.
//
// It produces the rotating reassurance lines shown while a session waits.
// Generation is strictly best-effort: every failure falls back to the static
// copy deck and never affects orchestration.
package copygen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MossHollow/InterludeEngine/internal/models"
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the copy generator.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option configures the copy generator.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model openai.ChatModel) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion service for generating copy decks.
type Client struct {
	chat  chatService
	model openai.ChatModel
}

// NewClient initializes a copy generator. An API key is required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("Creating copygen client", "model", cfg.Model)
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

const systemPrompt = "You write very short, gentle waiting-screen lines for a wellness journaling app. " +
	"The user has just shared a private reflection and is watching a calm interlude while it is being considered. " +
	"Lines must be reassuring, unhurried, and under 60 characters. Never mention processing, servers, or AI. " +
	"Return one line per row with no numbering."

// GenerateActiveLines generates count rotating copy lines personalized to the
// companion's display name and the reflection's emotional category.
func (c *Client) GenerateActiveLines(ctx context.Context, pigDisplayName string, emotion models.EmotionCategory, count int) ([]string, error) {
	if count <= 0 {
		count = 5
	}
	userPrompt := fmt.Sprintf("Write %d lines. The companion character is named %q. The reflection's mood is %s.", count, pigDisplayName, emotion)

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("copy generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	var lines []string
	for _, raw := range strings.Split(resp.Choices[0].Message.Content, "\n") {
		line := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "-•"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("generated copy too short: %d lines", len(lines))
	}
	slog.Debug("Copygen generated active lines", "count", len(lines), "emotion", emotion)
	return lines, nil
}
