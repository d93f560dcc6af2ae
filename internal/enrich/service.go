package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/DossierPipe/internal/assemble"
	"github.com/BTreeMap/DossierPipe/internal/catalog"
	"github.com/BTreeMap/DossierPipe/internal/genai"
	"github.com/BTreeMap/DossierPipe/internal/kb"
	"github.com/BTreeMap/DossierPipe/internal/models"
	"golang.org/x/time/rate"
)

// Defaults for the generator call.
const (
	DefaultTimeout       = 90 * time.Second
	DefaultRatePerMinute = 20
)

// GuideRequest is one enrichment request.
type GuideRequest struct {
	GuideType  models.FlowType
	Answers    models.Answers
	Profile    models.Profile
	Attachment *genai.Attachment
}

// GuideResult is the outcome of Generate. Document is always set so the
// guide can be rendered. Content is nil when the template fallback was used.
type GuideResult struct {
	GuideType   models.FlowType             `json:"guide_type"`
	PromptID    string                      `json:"prompt_id,omitempty"`
	Enriched    bool                        `json:"enriched"`
	Content     *GuideContent               `json:"content,omitempty"`
	Document    *models.DocumentDescription `json:"document"`
	GeneratedAt time.Time                   `json:"generated_at"`
}

// Service runs guide enrichment with a bounded, rate-limited generator call
// and falls back to the template assembler where one exists.
type Service struct {
	gen       genai.Generator
	assembler *assemble.Assembler
	catalogs  *catalog.Registry
	base      *kb.Base
	limiter   *rate.Limiter
	timeout   time.Duration
	now       func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTimeout bounds every generator call.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRatePerMinute limits generator calls process-wide. Zero or negative
// disables the limit.
func WithRatePerMinute(n int) ServiceOption {
	return func(s *Service) {
		if n <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

// WithKnowledgeBase sets the reference data injected into prompts.
func WithKnowledgeBase(base *kb.Base) ServiceOption {
	return func(s *Service) {
		s.base = base
	}
}

// WithCatalogs sets the catalogs used for guide titles.
func WithCatalogs(reg *catalog.Registry) ServiceOption {
	return func(s *Service) {
		s.catalogs = reg
	}
}

// WithServiceClock sets the clock used for GeneratedAt.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service. gen may be nil, in which case every guide
// is served by its template fallback or reported unavailable.
func NewService(gen genai.Generator, assembler *assemble.Assembler, opts ...ServiceOption) *Service {
	s := &Service{
		gen:       gen,
		assembler: assembler,
		timeout:   DefaultTimeout,
		now:       time.Now,
	}
	WithRatePerMinute(DefaultRatePerMinute)(s)
	for _, opt := range opts {
		opt(s)
	}
	if s.base == nil {
		s.base = kb.Default()
	}
	if s.catalogs == nil {
		if reg, err := catalog.Default(); err == nil {
			s.catalogs = reg
		}
	}
	if s.assembler == nil {
		s.assembler = assemble.New(assemble.WithKnowledgeBase(s.base), assemble.WithCatalogs(s.catalogs))
	}
	return s
}

// Available reports whether a generator is configured.
func (s *Service) Available() bool {
	return s.gen != nil
}

// HasFallback reports whether guideType can be served by the template
// assembler when enrichment fails.
func (s *Service) HasFallback(guideType models.FlowType) bool {
	return s.assembler.Has(string(guideType))
}

// Generate enriches a guide. Generator failures surface as
// models.ErrEnrichmentUnavailable unless a template fallback exists, in
// which case the plain template output is returned with Enriched false. An
// incomplete parse is not an error: the result carries the raw text with
// Content.Structured false.
func (s *Service) Generate(ctx context.Context, req GuideRequest) (*GuideResult, error) {
	if !HasTemplate(req.GuideType) && !s.HasFallback(req.GuideType) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownType, req.GuideType)
	}
	if req.GuideType == models.FlowHealthInsuranceVerification && (req.Attachment == nil || len(req.Attachment.Data) == 0) {
		return nil, fmt.Errorf("%w: insurance policy document required", models.ErrMissingAnswer)
	}

	if !HasTemplate(req.GuideType) {
		return s.fallback(req, nil)
	}
	prompt, err := BuildPrompt(req.GuideType, req.Answers, req.Profile, s.base)
	if err != nil {
		return nil, err
	}
	raw, err := s.call(ctx, prompt, req.Attachment)
	if err != nil {
		if s.HasFallback(req.GuideType) {
			slog.Warn("Enricher.Generate: falling back to template", "guide_type", req.GuideType, "error", err)
			return s.fallback(req, err)
		}
		slog.Error("Enricher.Generate: enrichment unavailable", "guide_type", req.GuideType, "error", err)
		return nil, err
	}

	content, err := ParseResponse(req.GuideType, raw)
	if err != nil && !errors.Is(err, models.ErrEnrichmentParseIncomplete) {
		return nil, err
	}
	if err != nil {
		slog.Warn("Enricher.Generate: response unstructured", "guide_type", req.GuideType, "prompt", prompt.TemplateID, "error", err)
	}
	lang := assemble.LanguageFor(req.Profile).String()
	result := &GuideResult{
		GuideType:   req.GuideType,
		PromptID:    prompt.TemplateID,
		Enriched:    true,
		Content:     content,
		Document:    content.Description(s.title(req.GuideType, lang), lang),
		GeneratedAt: s.now().UTC(),
	}
	result.Document.GeneratedAt = result.GeneratedAt
	slog.Info("Enricher.Generate succeeded", "guide_type", req.GuideType, "prompt", prompt.TemplateID, "structured", content.Structured, "overall", content.Overall)
	return result, nil
}

// call runs the generator under the timeout. The limiter wait counts
// against the same deadline.
func (s *Service) call(ctx context.Context, prompt Prompt, att *genai.Attachment) (string, error) {
	if s.gen == nil {
		return "", fmt.Errorf("%w: no text generator configured", models.ErrEnrichmentUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limited: %w", models.ErrEnrichmentUnavailable, err)
		}
	}
	raw, err := s.gen.Generate(ctx, genai.Request{System: prompt.System, Prompt: prompt.Text, Attachment: att})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return "", fmt.Errorf("%w: %w", models.ErrEnrichmentUnavailable, err)
	}
	return raw, nil
}

func (s *Service) fallback(req GuideRequest, cause error) (*GuideResult, error) {
	desc, err := s.assembler.Assemble(string(req.GuideType), req.Answers, req.Profile)
	if err != nil {
		if cause != nil {
			return nil, cause
		}
		return nil, err
	}
	return &GuideResult{
		GuideType:   req.GuideType,
		Enriched:    false,
		Document:    desc,
		GeneratedAt: desc.GeneratedAt,
	}, nil
}

func (s *Service) title(guideType models.FlowType, lang string) string {
	if s.catalogs != nil {
		if c, ok := s.catalogs.Get(guideType); ok {
			return c.TitleFor(lang)
		}
	}
	return string(guideType)
}
