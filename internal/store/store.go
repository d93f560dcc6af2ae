// Package store provides storage backends for DossierPipe.
//
// It persists flow states, member profiles, generated documents and support
// tickets. An in-memory store is used when no database is configured; SQLite
// and PostgreSQL backends share the same schema and queries.
package store

import (
	"context"
	"strings"

	"github.com/BTreeMap/DossierPipe/internal/models"
)

// Store is the persistence collaborator used by the flow, document and
// support services. Implementations must be safe for concurrent use.
type Store interface {
	// SaveFlowState upserts the flow state keyed by (user, flow type).
	SaveFlowState(ctx context.Context, state models.FlowState) error
	// GetFlowState returns nil and no error when no state exists.
	GetFlowState(ctx context.Context, userID string, flowType models.FlowType) (*models.FlowState, error)
	DeleteFlowState(ctx context.Context, userID string, flowType models.FlowType) error

	// GetProfile returns an empty profile when the member has none yet.
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
	SaveProfile(ctx context.Context, userID string, profile models.Profile) error

	SaveDocument(ctx context.Context, doc models.StoredDocument) error
	// GetDocument returns models.ErrNotFound when id is unknown.
	GetDocument(ctx context.Context, id string) (*models.StoredDocument, error)
	ListDocuments(ctx context.Context, userID string) ([]models.StoredDocument, error)

	SaveTicket(ctx context.Context, ticket models.Ticket) error
	// GetTicket returns models.ErrNotFound when id is unknown.
	GetTicket(ctx context.Context, id string) (*models.Ticket, error)
	// ListTickets returns the member's tickets, or every ticket when userID is empty.
	ListTickets(ctx context.Context, userID string) ([]models.Ticket, error)
	AddTicketMessage(ctx context.Context, msg models.TicketMessage) error
	ListTicketMessages(ctx context.Context, ticketID string) ([]models.TicketMessage, error)

	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string // database connection string
}

// Option defines a configuration option for store implementations.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSQLiteDSN sets the SQLite database path or DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DSN types reported by DetectDSNType.
const (
	DSNTypePostgres = "postgres"
	DSNTypeSQLite   = "sqlite3"
)

// DetectDSNType determines whether dsn addresses a PostgreSQL server or an
// SQLite file.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return DSNTypePostgres
	}
	return DSNTypeSQLite
}

// New opens the store selected by the options: PostgreSQL or SQLite by DSN,
// or an in-memory store when no DSN is set.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == DSNTypePostgres {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}
