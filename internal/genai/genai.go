// Package genai provides the text-generation collaborator used by guide
// enrichment, with OpenAI and Anthropic backends.
package genai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default settings shared by both providers.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultTemperature    = 0.2
	DefaultMaxTokens      = 2048
)

var (
	// ErrNoAPIKey is returned when a client is built without credentials.
	ErrNoAPIKey = errors.New("genai: API key not set")
	// ErrNoChoicesReturned is returned when the provider answers with no content.
	ErrNoChoicesReturned = errors.New("genai: no choices returned")
	// ErrUnsupportedAttachment is returned for attachment media types a provider cannot read.
	ErrUnsupportedAttachment = errors.New("genai: unsupported attachment type")
)

// Attachment is a binary file sent alongside the prompt, such as a scanned
// insurance policy.
type Attachment struct {
	Name      string
	MediaType string
	Data      []byte
}

// IsPDF reports whether the attachment is a PDF document.
func (a *Attachment) IsPDF() bool {
	return a.MediaType == "application/pdf"
}

// IsImage reports whether the attachment is an image.
func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(a.MediaType, "image/")
}

// dataURL encodes the attachment as a base64 data URL.
func (a *Attachment) dataURL() string {
	return "data:" + a.MediaType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// Request is one text-generation call.
type Request struct {
	System     string
	Prompt     string
	Attachment *Attachment
}

// Generator produces text for a request. Implementations must honour ctx
// cancellation.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Opts holds configuration for the provider clients.
type Opts struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int64
	DebugDir    string
}

// Option configures a client.
type Option func(*Opts)

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) {
		o.Temperature = t
	}
}

// WithMaxTokens sets the completion token limit.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) {
		o.MaxTokens = n
	}
}

// WithDebugDir enables request/response logging to JSON files under dir.
func WithDebugDir(dir string) Option {
	return func(o *Opts) {
		o.DebugDir = dir
	}
}

func buildOpts(defaultModel string, opts []Option) Opts {
	o := Opts{
		Model:       defaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Model == "" {
		o.Model = defaultModel
	}
	return o
}

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat        chatService
	model       string
	temperature float64
	maxTokens   int64
	debugDir    string
}

// NewClient initializes an OpenAI client. The key comes from WithAPIKey or
// the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	o := buildOpts(DefaultOpenAIModel, opts)
	if o.APIKey == "" {
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", ErrNoAPIKey)
	}
	cli := openai.NewClient(option.WithAPIKey(o.APIKey))
	slog.Debug("GenAI client created", "provider", "openai", "model", o.Model)
	return &Client{
		chat:        &cli.Chat.Completions,
		model:       o.Model,
		temperature: o.Temperature,
		maxTokens:   o.MaxTokens,
		debugDir:    o.DebugDir,
	}, nil
}

// Generate sends the request as a system message plus a user message. PDF
// and image attachments travel as content parts of the user message.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	user, err := openAIUserMessage(req)
	if err != nil {
		return "", err
	}
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, user)

	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.model),
		Messages:            messages,
		Temperature:         openai.Float(c.temperature),
		MaxCompletionTokens: openai.Int(c.maxTokens),
	}
	slog.Debug("GenAI.Generate: sending request", "provider", "openai", "model", c.model, "prompt_len", len(req.Prompt), "attachment", req.Attachment != nil)
	start := time.Now()
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		slog.Error("GenAI.Generate: request failed", "provider", "openai", "error", err, "elapsed", time.Since(start))
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	writeDebugLog(c.debugDir, "openai", c.model, req, content)
	slog.Debug("GenAI.Generate: response received", "provider", "openai", "content_len", len(content), "elapsed", time.Since(start))
	return content, nil
}

func openAIUserMessage(req Request) (openai.ChatCompletionMessageParamUnion, error) {
	if req.Attachment == nil {
		return openai.UserMessage(req.Prompt), nil
	}
	a := req.Attachment
	var part openai.ChatCompletionContentPartUnionParam
	switch {
	case a.IsImage():
		part = openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: a.dataURL()})
	case a.IsPDF():
		part = openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
			FileData: openai.String(a.dataURL()),
			Filename: openai.String(a.Name),
		})
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: %s", ErrUnsupportedAttachment, a.MediaType)
	}
	return openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(req.Prompt),
		part,
	}), nil
}

// debugRecord is the JSON shape written by debug logging. Attachment bytes
// are never written.
type debugRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	System     string    `json:"system"`
	Prompt     string    `json:"prompt"`
	Attachment string    `json:"attachment,omitempty"`
	Response   string    `json:"response"`
}

func writeDebugLog(dir, provider, model string, req Request, response string) {
	if dir == "" {
		return
	}
	rec := debugRecord{
		Timestamp: time.Now().UTC(),
		Provider:  provider,
		Model:     model,
		System:    req.System,
		Prompt:    req.Prompt,
		Response:  response,
	}
	if req.Attachment != nil {
		rec.Attachment = fmt.Sprintf("%s (%s, %d bytes)", req.Attachment.Name, req.Attachment.MediaType, len(req.Attachment.Data))
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		slog.Warn("GenAI debug log: marshal failed", "error", err)
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("GenAI debug log: mkdir failed", "dir", dir, "error", err)
		return
	}
	name := fmt.Sprintf("%s_%s.json", provider, rec.Timestamp.Format("20060102T150405.000000000"))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		slog.Warn("GenAI debug log: write failed", "error", err)
	}
}
