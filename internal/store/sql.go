package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BTreeMap/DossierPipe/internal/models"
)

// sqlStore implements Store on database/sql. Queries are written with '?'
// placeholders and rebound for drivers that use numbered parameters.
type sqlStore struct {
	db     *sql.DB
	name   string
	rebind func(string) string
}

func bindQuestion(q string) string { return q }

// bindDollar rewrites '?' placeholders to $1, $2, ...
func bindDollar(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

// SaveFlowState stores or updates flow state for a member.
func (s *sqlStore) SaveFlowState(ctx context.Context, state models.FlowState) error {
	answers := state.Answers
	if answers == nil {
		answers = models.Answers{}
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		slog.Error(s.name+" SaveFlowState JSON marshal failed", "error", err, "userID", state.UserID)
		return fmt.Errorf("failed to marshal answers: %w", err)
	}
	err = s.exec(ctx, `
		INSERT INTO flow_states (user_id, flow_type, instance_id, step, answers, complete, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, flow_type) DO UPDATE SET
			instance_id = excluded.instance_id,
			step = excluded.step,
			answers = excluded.answers,
			complete = excluded.complete,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		state.UserID, string(state.FlowType), state.InstanceID, state.Step, string(answersJSON),
		state.Complete, state.CreatedAt.UTC(), state.UpdatedAt.UTC())
	if err != nil {
		slog.Error(s.name+" SaveFlowState failed", "error", err, "userID", state.UserID, "flowType", state.FlowType)
		return fmt.Errorf("failed to save flow state: %w", err)
	}
	slog.Debug(s.name+" SaveFlowState succeeded", "userID", state.UserID, "flowType", state.FlowType, "step", state.Step)
	return nil
}

// GetFlowState retrieves flow state for a member, or nil when none exists.
func (s *sqlStore) GetFlowState(ctx context.Context, userID string, flowType models.FlowType) (*models.FlowState, error) {
	var state models.FlowState
	var ft, answersJSON string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT user_id, flow_type, instance_id, step, answers, complete, created_at, updated_at
		FROM flow_states WHERE user_id = ? AND flow_type = ?`), userID, string(flowType)).Scan(
		&state.UserID, &ft, &state.InstanceID, &state.Step, &answersJSON,
		&state.Complete, &state.CreatedAt, &state.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug(s.name+" GetFlowState not found", "userID", userID, "flowType", flowType)
		return nil, nil
	}
	if err != nil {
		slog.Error(s.name+" GetFlowState failed", "error", err, "userID", userID, "flowType", flowType)
		return nil, fmt.Errorf("failed to load flow state: %w", err)
	}
	state.FlowType = models.FlowType(ft)
	state.Answers = models.Answers{}
	if answersJSON != "" {
		if err := json.Unmarshal([]byte(answersJSON), &state.Answers); err != nil {
			// Continue with empty answers rather than failing
			slog.Error(s.name+" GetFlowState JSON unmarshal failed", "error", err, "userID", userID)
			state.Answers = models.Answers{}
		}
	}
	return &state, nil
}

// DeleteFlowState removes flow state for a member.
func (s *sqlStore) DeleteFlowState(ctx context.Context, userID string, flowType models.FlowType) error {
	if err := s.exec(ctx, `DELETE FROM flow_states WHERE user_id = ? AND flow_type = ?`, userID, string(flowType)); err != nil {
		slog.Error(s.name+" DeleteFlowState failed", "error", err, "userID", userID, "flowType", flowType)
		return fmt.Errorf("failed to delete flow state: %w", err)
	}
	return nil
}

// GetProfile returns the member's profile, empty when none is stored.
func (s *sqlStore) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT data FROM profiles WHERE user_id = ?`), userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, nil
	}
	if err != nil {
		slog.Error(s.name+" GetProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	profile := models.Profile{}
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return profile, nil
}

// SaveProfile replaces the member's profile.
func (s *sqlStore) SaveProfile(ctx context.Context, userID string, profile models.Profile) error {
	if profile == nil {
		profile = models.Profile{}
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	err = s.exec(ctx, `
		INSERT INTO profiles (user_id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(data))
	if err != nil {
		slog.Error(s.name+" SaveProfile failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to save profile: %w", err)
	}
	slog.Debug(s.name+" SaveProfile succeeded", "userID", userID, "fields", len(profile))
	return nil
}

// SaveDocument stores a generated document.
func (s *sqlStore) SaveDocument(ctx context.Context, doc models.StoredDocument) error {
	desc, err := json.Marshal(doc.Description)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	err = s.exec(ctx, `INSERT INTO documents (id, user_id, doc_type, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Type, string(desc), doc.CreatedAt.UTC())
	if err != nil {
		slog.Error(s.name+" SaveDocument failed", "error", err, "userID", doc.UserID, "type", doc.Type)
		return fmt.Errorf("failed to save document: %w", err)
	}
	slog.Debug(s.name+" SaveDocument succeeded", "id", doc.ID, "type", doc.Type)
	return nil
}

func scanDocument(scan func(dest ...interface{}) error) (models.StoredDocument, error) {
	var doc models.StoredDocument
	var desc string
	if err := scan(&doc.ID, &doc.UserID, &doc.Type, &desc, &doc.CreatedAt); err != nil {
		return doc, err
	}
	if err := json.Unmarshal([]byte(desc), &doc.Description); err != nil {
		return doc, fmt.Errorf("failed to parse document %s: %w", doc.ID, err)
	}
	return doc, nil
}

// GetDocument returns the document with the given id.
func (s *sqlStore) GetDocument(ctx context.Context, id string) (*models.StoredDocument, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, user_id, doc_type, description, created_at FROM documents WHERE id = ?`), id)
	doc, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		slog.Error(s.name+" GetDocument failed", "error", err, "id", id)
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns the member's documents, newest first.
func (s *sqlStore) ListDocuments(ctx context.Context, userID string) ([]models.StoredDocument, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, user_id, doc_type, description, created_at FROM documents
		WHERE user_id = ? ORDER BY created_at DESC`), userID)
	if err != nil {
		slog.Error(s.name+" ListDocuments query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()
	var out []models.StoredDocument
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// SaveTicket creates or updates a ticket.
func (s *sqlStore) SaveTicket(ctx context.Context, t models.Ticket) error {
	err := s.exec(ctx, `
		INSERT INTO tickets (id, user_id, subject, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET subject = excluded.subject, status = excluded.status, updated_at = excluded.updated_at`,
		t.ID, t.UserID, t.Subject, string(t.Status), t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		slog.Error(s.name+" SaveTicket failed", "error", err, "id", t.ID)
		return fmt.Errorf("failed to save ticket: %w", err)
	}
	slog.Debug(s.name+" SaveTicket succeeded", "id", t.ID, "status", t.Status)
	return nil
}

func scanTicket(scan func(dest ...interface{}) error) (models.Ticket, error) {
	var t models.Ticket
	var status string
	err := scan(&t.ID, &t.UserID, &t.Subject, &status, &t.CreatedAt, &t.UpdatedAt)
	t.Status = models.TicketStatus(status)
	return t, err
}

// GetTicket returns the ticket with the given id.
func (s *sqlStore) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, user_id, subject, status, created_at, updated_at FROM tickets WHERE id = ?`), id)
	t, err := scanTicket(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		slog.Error(s.name+" GetTicket failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	return &t, nil
}

// ListTickets returns tickets ordered by last update, newest first.
func (s *sqlStore) ListTickets(ctx context.Context, userID string) ([]models.Ticket, error) {
	query := `SELECT id, user_id, subject, status, created_at, updated_at FROM tickets`
	var args []interface{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY updated_at DESC`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		slog.Error(s.name+" ListTickets query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()
	var out []models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddTicketMessage appends a message to its ticket thread.
func (s *sqlStore) AddTicketMessage(ctx context.Context, m models.TicketMessage) error {
	err := s.exec(ctx, `INSERT INTO ticket_messages (id, ticket_id, author_role, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.TicketID, string(m.AuthorRole), m.Body, m.CreatedAt.UTC())
	if err != nil {
		slog.Error(s.name+" AddTicketMessage failed", "error", err, "ticketID", m.TicketID)
		return fmt.Errorf("failed to add ticket message: %w", err)
	}
	return nil
}

// ListTicketMessages returns the thread in posting order.
func (s *sqlStore) ListTicketMessages(ctx context.Context, ticketID string) ([]models.TicketMessage, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, ticket_id, author_role, body, created_at FROM ticket_messages
		WHERE ticket_id = ? ORDER BY seq`), ticketID)
	if err != nil {
		slog.Error(s.name+" ListTicketMessages query failed", "error", err, "ticketID", ticketID)
		return nil, fmt.Errorf("failed to query ticket messages: %w", err)
	}
	defer rows.Close()
	out := []models.TicketMessage{}
	for rows.Next() {
		var m models.TicketMessage
		var role string
		if err := rows.Scan(&m.ID, &m.TicketID, &role, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket message row: %w", err)
		}
		m.AuthorRole = models.AuthorRole(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	slog.Debug("Closing " + s.name + " database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close "+s.name+" database", "error", err)
	}
	return err
}
