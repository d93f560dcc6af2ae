// Package api provides the HTTP server and handlers for DossierPipe.
//
// It exposes JSON endpoints for question flows, document assembly, guide
// enrichment, profiles and support tickets. The API wires the flow, assemble,
// enrich, support and store modules together.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/DossierPipe/internal/assemble"
	"github.com/BTreeMap/DossierPipe/internal/catalog"
	"github.com/BTreeMap/DossierPipe/internal/enrich"
	"github.com/BTreeMap/DossierPipe/internal/flow"
	"github.com/BTreeMap/DossierPipe/internal/genai"
	"github.com/BTreeMap/DossierPipe/internal/kb"
	"github.com/BTreeMap/DossierPipe/internal/notify"
	"github.com/BTreeMap/DossierPipe/internal/store"
	"github.com/BTreeMap/DossierPipe/internal/support"
	"github.com/go-chi/chi/v5"
)

// Default server settings.
const (
	DefaultAddr          = ":8080"
	DefaultShutdownGrace = 10 * time.Second
	// MaxUploadBytes bounds multipart uploads of policy documents.
	MaxUploadBytes = 10 << 20
)

// GenAI providers accepted by WithGenAIProvider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr          string
	GenAIProvider string
	KBPath        string
	GenAITimeout  time.Duration
	RatePerMinute *int
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithGenAIProvider selects the text-generation provider: openai,
// anthropic or none.
func WithGenAIProvider(provider string) Option {
	return func(o *Opts) {
		o.GenAIProvider = provider
	}
}

// WithKnowledgeBasePath loads the knowledge base from a YAML file instead of
// the embedded snapshot.
func WithKnowledgeBasePath(path string) Option {
	return func(o *Opts) {
		o.KBPath = path
	}
}

// WithGenAITimeout bounds each enrichment call.
func WithGenAITimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.GenAITimeout = d
	}
}

// WithRatePerMinute limits enrichment calls per minute. Zero disables the
// limit.
func WithRatePerMinute(n int) Option {
	return func(o *Opts) {
		o.RatePerMinute = &n
	}
}

// Deps are the collaborators a Server is built from. Only Store is
// required.
type Deps struct {
	Store         store.Store
	Catalogs      *catalog.Registry
	Base          *kb.Base
	Generator     genai.Generator
	Notifier      notify.Notifier
	EnrichOptions []enrich.ServiceOption
	Now           func() time.Time
}

// Server routes HTTP requests to the DossierPipe services.
type Server struct {
	router    chi.Router
	st        store.Store
	catalogs  *catalog.Registry
	sessions  *flow.SessionManager
	assembler *assemble.Assembler
	enricher  *enrich.Service
	support   *support.Service
	now       func() time.Time
}

// NewServer builds the services from deps and registers the routes.
func NewServer(deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("api: store is required")
	}
	if deps.Catalogs == nil {
		reg, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("api: load catalogs: %w", err)
		}
		deps.Catalogs = reg
	}
	if deps.Base == nil {
		deps.Base = kb.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	assembler := assemble.New(
		assemble.WithKnowledgeBase(deps.Base),
		assemble.WithCatalogs(deps.Catalogs),
		assemble.WithClock(deps.Now),
	)
	enrichOpts := append([]enrich.ServiceOption{
		enrich.WithKnowledgeBase(deps.Base),
		enrich.WithCatalogs(deps.Catalogs),
		enrich.WithServiceClock(deps.Now),
	}, deps.EnrichOptions...)

	s := &Server{
		router:    chi.NewRouter(),
		st:        deps.Store,
		catalogs:  deps.Catalogs,
		sessions:  flow.NewSessionManager(flow.NewMachine(deps.Catalogs), deps.Store),
		assembler: assembler,
		enricher:  enrich.NewService(deps.Generator, assembler, enrichOpts...),
		support:   support.NewService(deps.Store, support.WithNotifier(deps.Notifier), support.WithClock(deps.Now)),
		now:       deps.Now,
	}
	s.routes()
	slog.Debug("Server created", "flows", len(deps.Catalogs.Types()), "documents", len(assembler.Types()), "enrichment", s.enricher.Available())
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(requestLogger)

	r.Get("/healthz", s.healthHandler)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Get("/flows", s.listFlowsHandler)
		r.Route("/flows/{flowType}", func(r chi.Router) {
			r.Get("/", s.getFlowHandler)
			r.Delete("/", s.resetFlowHandler)
			r.Post("/start", s.startFlowHandler)
			r.Post("/answer", s.answerFlowHandler)
			r.Post("/is-last", s.isLastQuestionHandler)
		})

		// {ref} is a document type for POST and a stored document id for GET.
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.listDocumentsHandler)
			r.Post("/{ref}", s.createDocumentHandler)
			r.Get("/{ref}", s.getDocumentHandler)
			r.Get("/{ref}/export", s.exportDocumentHandler)
		})

		r.Post("/guides/health_insurance_verification/verify", s.verifyInsuranceHandler)
		r.Post("/guides/{guideType}", s.createGuideHandler)

		r.Get("/profile", s.getProfileHandler)
		r.Put("/profile", s.putProfileHandler)

		r.Route("/tickets", func(r chi.Router) {
			r.Post("/", s.openTicketHandler)
			r.Get("/", s.listTicketsHandler)
			r.Get("/{id}", s.getTicketHandler)
			r.Post("/{id}/messages", s.replyTicketHandler)
			r.Post("/{id}/close", s.closeTicketHandler)
		})
	})
}

// newGenerator creates the configured text-generation client. A missing API
// key disables enrichment instead of failing startup.
func newGenerator(provider string, opts []genai.Option) (genai.Generator, error) {
	switch provider {
	case ProviderNone:
		return nil, nil
	case ProviderAnthropic:
		c, err := genai.NewAnthropicClient(opts...)
		if errors.Is(err, genai.ErrNoAPIKey) {
			slog.Warn("Anthropic API key not set, enrichment disabled")
			return nil, nil
		}
		return c, err
	case ProviderOpenAI, "":
		c, err := genai.NewClient(opts...)
		if errors.Is(err, genai.ErrNoAPIKey) {
			slog.Warn("OpenAI API key not set, enrichment disabled")
			return nil, nil
		}
		return c, err
	default:
		return nil, fmt.Errorf("unknown genai provider %q", provider)
	}
}

// newNotifier creates the Twilio notifier, or a no-op notifier when Twilio
// is not configured.
func newNotifier(opts []notify.Option) notify.Notifier {
	n, err := notify.NewTwilioNotifier(opts...)
	if err != nil {
		slog.Info("Twilio notifier not configured, support replies will not be notified", "reason", err)
		return notify.NoopNotifier{}
	}
	return n
}

// Run builds every module from its options and serves HTTP until SIGINT or
// SIGTERM.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, notifyOpts []notify.Option, apiOpts []Option) error {
	slog.Debug("API Run invoked", "store_opts", len(storeOpts), "genai_opts", len(genaiOpts), "notify_opts", len(notifyOpts), "api_opts", len(apiOpts))
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := store.New(storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
	}()

	base, err := kb.Load(cfg.KBPath)
	if err != nil {
		return fmt.Errorf("failed to load knowledge base: %w", err)
	}
	gen, err := newGenerator(cfg.GenAIProvider, genaiOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize genai client: %w", err)
	}

	var enrichOpts []enrich.ServiceOption
	if cfg.GenAITimeout > 0 {
		enrichOpts = append(enrichOpts, enrich.WithTimeout(cfg.GenAITimeout))
	}
	if cfg.RatePerMinute != nil {
		enrichOpts = append(enrichOpts, enrich.WithRatePerMinute(*cfg.RatePerMinute))
	}

	srv, err := NewServer(Deps{
		Store:         st,
		Base:          base,
		Generator:     gen,
		Notifier:      newNotifier(notifyOpts),
		EnrichOptions: enrichOpts,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("DossierPipe API listening", "addr", cfg.Addr, "enrichment", gen != nil)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping API server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
