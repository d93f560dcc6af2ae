package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/BTreeMap/DossierPipe/internal/models"
)

type flowKey struct {
	userID   string
	flowType models.FlowType
}

// InMemoryStore keeps every record in process memory. It is used when no
// database DSN is configured and in tests.
type InMemoryStore struct {
	mu         sync.RWMutex
	flowStates map[flowKey]models.FlowState
	profiles   map[string]models.Profile
	documents  map[string]models.StoredDocument
	tickets    map[string]models.Ticket
	messages   map[string][]models.TicketMessage
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		flowStates: make(map[flowKey]models.FlowState),
		profiles:   make(map[string]models.Profile),
		documents:  make(map[string]models.StoredDocument),
		tickets:    make(map[string]models.Ticket),
		messages:   make(map[string][]models.TicketMessage),
	}
}

// SaveFlowState stores or replaces the flow state for (user, flow type).
func (s *InMemoryStore) SaveFlowState(ctx context.Context, state models.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state.Answers = state.Answers.Clone()
	s.flowStates[flowKey{state.UserID, state.FlowType}] = state
	slog.Debug("InMemoryStore SaveFlowState succeeded", "userID", state.UserID, "flowType", state.FlowType, "step", state.Step)
	return nil
}

// GetFlowState returns the flow state, or nil when none exists.
func (s *InMemoryStore) GetFlowState(ctx context.Context, userID string, flowType models.FlowType) (*models.FlowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.flowStates[flowKey{userID, flowType}]
	if !ok {
		return nil, nil
	}
	state.Answers = state.Answers.Clone()
	return &state, nil
}

// DeleteFlowState removes the flow state for (user, flow type).
func (s *InMemoryStore) DeleteFlowState(ctx context.Context, userID string, flowType models.FlowType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flowStates, flowKey{userID, flowType})
	return nil
}

// GetProfile returns a copy of the member's profile.
func (s *InMemoryStore) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, nil
	}
	return p.Clone(), nil
}

// SaveProfile replaces the member's profile.
func (s *InMemoryStore) SaveProfile(ctx context.Context, userID string, profile models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = profile.Clone()
	slog.Debug("InMemoryStore SaveProfile succeeded", "userID", userID, "fields", len(profile))
	return nil
}

// SaveDocument stores a generated document.
func (s *InMemoryStore) SaveDocument(ctx context.Context, doc models.StoredDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
	return nil
}

// GetDocument returns the document with the given id.
func (s *InMemoryStore) GetDocument(ctx context.Context, id string) (*models.StoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return &doc, nil
}

// ListDocuments returns the member's documents, newest first.
func (s *InMemoryStore) ListDocuments(ctx context.Context, userID string) ([]models.StoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StoredDocument
	for _, doc := range s.documents {
		if doc.UserID == userID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SaveTicket creates or updates a ticket.
func (s *InMemoryStore) SaveTicket(ctx context.Context, ticket models.Ticket) error {
	if ticket.ID == "" {
		return fmt.Errorf("ticket id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[ticket.ID] = ticket
	return nil
}

// GetTicket returns the ticket with the given id.
func (s *InMemoryStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", id, models.ErrNotFound)
	}
	return &t, nil
}

// ListTickets returns tickets ordered by last update, newest first.
func (s *InMemoryStore) ListTickets(ctx context.Context, userID string) ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Ticket
	for _, t := range s.tickets {
		if userID == "" || t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// AddTicketMessage appends a message to its ticket thread.
func (s *InMemoryStore) AddTicketMessage(ctx context.Context, msg models.TicketMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[msg.TicketID]; !ok {
		return fmt.Errorf("ticket %s: %w", msg.TicketID, models.ErrNotFound)
	}
	s.messages[msg.TicketID] = append(s.messages[msg.TicketID], msg)
	return nil
}

// ListTicketMessages returns the thread in posting order.
func (s *InMemoryStore) ListTicketMessages(ctx context.Context, ticketID string) ([]models.TicketMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[ticketID]
	out := make([]models.TicketMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
