package genai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   *openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.params = params
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.resp, m.err
}

func completion(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestGenerate_Success(t *testing.T) {
	mock := &mockChatService{resp: completion("Hello World")}
	client := &Client{chat: mock, model: "test-model", temperature: 0.1, maxTokens: 100}
	out, err := client.Generate(context.Background(), Request{System: "system prompt", Prompt: "user prompt"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if len(mock.params.Messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(mock.params.Messages))
	}
	if string(mock.params.Model) != "test-model" {
		t.Errorf("expected model test-model, got %s", mock.params.Model)
	}
}

func TestGenerate_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.Generate(context.Background(), Request{Prompt: "usr"})
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestGenerate_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: &openai.ChatCompletion{}}}
	_, err := client.Generate(context.Background(), Request{Prompt: "usr"})
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestGenerate_CanceledContext(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completion("late")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Generate(ctx, Request{Prompt: "usr"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGenerate_Attachments(t *testing.T) {
	mock := &mockChatService{resp: completion("ok")}
	client := &Client{chat: mock}
	pdf := &Attachment{Name: "policy.pdf", MediaType: "application/pdf", Data: []byte("%PDF-1.4")}
	if _, err := client.Generate(context.Background(), Request{Prompt: "check", Attachment: pdf}); err != nil {
		t.Fatalf("pdf attachment: %v", err)
	}
	png := &Attachment{Name: "scan.png", MediaType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
	if _, err := client.Generate(context.Background(), Request{Prompt: "check", Attachment: png}); err != nil {
		t.Fatalf("image attachment: %v", err)
	}
	doc := &Attachment{Name: "policy.docx", MediaType: "application/msword"}
	if _, err := client.Generate(context.Background(), Request{Prompt: "check", Attachment: doc}); !errors.Is(err, ErrUnsupportedAttachment) {
		t.Errorf("expected ErrUnsupportedAttachment, got %v", err)
	}
}

func TestDebugLogging(t *testing.T) {
	dir := t.TempDir()
	client := &Client{chat: &mockChatService{resp: completion("Test response")}, model: "test-model", debugDir: dir}
	att := &Attachment{Name: "policy.pdf", MediaType: "application/pdf", Data: []byte("secret bytes")}
	if _, err := client.Generate(context.Background(), Request{System: "System prompt", Prompt: "User prompt", Attachment: att}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read debug directory: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected one debug file, got %d", len(files))
	}
	data, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	if err != nil {
		t.Fatalf("failed to read debug file: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "User prompt") || !strings.Contains(text, "Test response") {
		t.Errorf("debug file missing prompt or response: %s", text)
	}
	if strings.Contains(text, "secret bytes") {
		t.Error("attachment bytes must not be logged")
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if cli.model != "gpt-4o" || cli.maxTokens != DefaultMaxTokens {
		t.Errorf("options not applied: %+v", cli)
	}
}

// mockMessageService implements messageService for testing.
type mockMessageService struct {
	resp   *anthropic.Message
	err    error
	params anthropic.MessageNewParams
}

func (m *mockMessageService) New(ctx context.Context, params anthropic.MessageNewParams, opts ...anthropicoption.RequestOption) (*anthropic.Message, error) {
	m.params = params
	return m.resp, m.err
}

func TestAnthropicGenerate(t *testing.T) {
	mock := &mockMessageService{resp: &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "ASSESSMENT: "},
			{Type: "text", Text: "✅ compliant"},
		},
	}}
	client := &AnthropicClient{messages: mock, model: "claude-test", maxTokens: 512}
	out, err := client.Generate(context.Background(), Request{System: "sys", Prompt: "check", Attachment: &Attachment{MediaType: "application/pdf", Data: []byte("%PDF")}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "ASSESSMENT: ✅ compliant" {
		t.Errorf("unexpected output %q", out)
	}
	if len(mock.params.System) != 1 || mock.params.System[0].Text != "sys" {
		t.Error("system prompt not sent")
	}
	if len(mock.params.Messages) != 1 || len(mock.params.Messages[0].Content) != 2 {
		t.Error("expected one user turn with document and text blocks")
	}
}

func TestAnthropicGenerate_Errors(t *testing.T) {
	client := &AnthropicClient{messages: &mockMessageService{err: errors.New("overloaded")}}
	if _, err := client.Generate(context.Background(), Request{Prompt: "x"}); err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Errorf("expected wrapped service error, got %v", err)
	}
	client = &AnthropicClient{messages: &mockMessageService{resp: &anthropic.Message{}}}
	if _, err := client.Generate(context.Background(), Request{Prompt: "x"}); !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
}

func TestNewAnthropicClient_NoKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := NewAnthropicClient(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}
