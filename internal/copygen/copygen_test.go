package copygen

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/MossHollow/InterludeEngine/internal/models"
)

// mockChatService returns a scripted completion.
type mockChatService struct {
	content string
	err     error
	gotBody openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.gotBody = body
	if m.err != nil {
		return nil, m.err
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: m.content}},
		},
	}, nil
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("Expected error when API key is not set")
	}
}

func TestGenerateActiveLines(t *testing.T) {
	mock := &mockChatService{content: "Truffle is sitting with what you shared.\n\n- Just breathe.\nGood things are slow.\n"}
	client := &Client{chat: mock, model: openai.ChatModelGPT4oMini}

	lines, err := client.GenerateActiveLines(context.Background(), "Truffle", models.EmotionAnxious, 3)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("Expected 3 cleaned lines, got %d: %v", len(lines), lines)
	}
	if lines[1] != "Just breathe." {
		t.Errorf("Expected bullet marker stripped, got %q", lines[1])
	}
	if mock.gotBody.Model != openai.ChatModelGPT4oMini {
		t.Errorf("Expected model passed through, got %s", mock.gotBody.Model)
	}
}

func TestGenerateActiveLinesPropagatesError(t *testing.T) {
	mock := &mockChatService{err: errors.New("rate limited")}
	client := &Client{chat: mock, model: openai.ChatModelGPT4oMini}

	if _, err := client.GenerateActiveLines(context.Background(), "Truffle", models.EmotionNeutral, 3); err == nil {
		t.Error("Expected error to propagate")
	}
}

func TestGenerateActiveLinesRejectsTooFewLines(t *testing.T) {
	mock := &mockChatService{content: "only one line"}
	client := &Client{chat: mock, model: openai.ChatModelGPT4oMini}

	if _, err := client.GenerateActiveLines(context.Background(), "Truffle", models.EmotionNeutral, 5); err == nil {
		t.Error("Expected error for single-line response")
	}
}
