package genai

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

// messageService defines the minimal interface for the Messages API.
type messageService interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...anthropicoption.RequestOption) (*anthropic.Message, error)
}

// AnthropicClient wraps the Anthropic Messages API.
type AnthropicClient struct {
	messages    messageService
	model       string
	temperature float64
	maxTokens   int64
	debugDir    string
}

// NewAnthropicClient initializes an Anthropic client. The key comes from
// WithAPIKey or the ANTHROPIC_API_KEY environment variable.
func NewAnthropicClient(opts ...Option) (*AnthropicClient, error) {
	o := buildOpts(DefaultAnthropicModel, opts)
	if o.APIKey == "" {
		o.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY", ErrNoAPIKey)
	}
	cli := anthropic.NewClient(anthropicoption.WithAPIKey(o.APIKey))
	slog.Debug("GenAI client created", "provider", "anthropic", "model", o.Model)
	return &AnthropicClient{
		messages:    &cli.Messages,
		model:       o.Model,
		temperature: o.Temperature,
		maxTokens:   o.MaxTokens,
		debugDir:    o.DebugDir,
	}, nil
}

// Generate sends the prompt as a single user turn. PDF attachments become
// document blocks and images become image blocks placed before the text.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (string, error) {
	blocks, err := anthropicBlocks(req)
	if err != nil {
		return "", err
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		Temperature: anthropic.Float(c.temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	slog.Debug("GenAI.Generate: sending request", "provider", "anthropic", "model", c.model, "prompt_len", len(req.Prompt), "attachment", req.Attachment != nil)
	start := time.Now()
	msg, err := c.messages.New(ctx, params)
	if err != nil {
		slog.Error("GenAI.Generate: request failed", "provider", "anthropic", "error", err, "elapsed", time.Since(start))
		return "", fmt.Errorf("anthropic: %w", err)
	}
	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrNoChoicesReturned
	}
	content := sb.String()
	writeDebugLog(c.debugDir, "anthropic", c.model, req, content)
	slog.Debug("GenAI.Generate: response received", "provider", "anthropic", "content_len", len(content), "stop_reason", msg.StopReason, "elapsed", time.Since(start))
	return content, nil
}

func anthropicBlocks(req Request) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	if a := req.Attachment; a != nil {
		data := base64.StdEncoding.EncodeToString(a.Data)
		switch {
		case a.IsPDF():
			blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: data}))
		case a.IsImage():
			blocks = append(blocks, anthropic.NewImageBlockBase64(a.MediaType, data))
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedAttachment, a.MediaType)
		}
	}
	return append(blocks, anthropic.NewTextBlock(req.Prompt)), nil
}
