// Package support implements two-party support ticket threads between a
// member and staff.
package support

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/DossierPipe/internal/models"
	"github.com/BTreeMap/DossierPipe/internal/notify"
	"github.com/BTreeMap/DossierPipe/internal/store"
	"github.com/google/uuid"
)

// MaxSubjectLength bounds ticket subjects; longer subjects are truncated.
const MaxSubjectLength = 200

// Thread is a ticket with its messages in posting order.
type Thread struct {
	Ticket   models.Ticket          `json:"ticket"`
	Messages []models.TicketMessage `json:"messages"`
}

// Service manages support tickets.
type Service struct {
	st       store.Store
	notifier notify.Notifier
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the notifier used for staff replies.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a support service backed by st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{st: st, notifier: notify.NoopNotifier{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a ticket with the member's first message.
func (s *Service) Open(ctx context.Context, userID, subject, body string) (*Thread, error) {
	slog.Debug("Support.Open", "user_id", userID)
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrMissingAnswer)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, models.ErrEmptyMessage
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = firstLine(body)
	}
	if r := []rune(subject); len(r) > MaxSubjectLength {
		subject = string(r[:MaxSubjectLength])
	}

	now := s.now().UTC()
	ticket := models.Ticket{
		ID:        uuid.NewString(),
		UserID:    userID,
		Subject:   subject,
		Status:    models.TicketOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.st.SaveTicket(ctx, ticket); err != nil {
		slog.Error("Support.Open: save ticket failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to save ticket: %w", err)
	}
	msg := models.TicketMessage{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		AuthorRole: models.RoleMember,
		Body:       body,
		CreatedAt:  now,
	}
	if err := s.st.AddTicketMessage(ctx, msg); err != nil {
		slog.Error("Support.Open: save message failed", "ticket_id", ticket.ID, "error", err)
		return nil, fmt.Errorf("failed to save ticket message: %w", err)
	}
	slog.Info("Support.Open: ticket opened", "ticket_id", ticket.ID, "user_id", userID)
	return &Thread{Ticket: ticket, Messages: []models.TicketMessage{msg}}, nil
}

// Reply appends a message to a ticket. A staff reply marks the ticket
// answered and notifies the member; a member reply reopens it.
func (s *Service) Reply(ctx context.Context, ticketID string, role models.AuthorRole, body string) (*Thread, error) {
	slog.Debug("Support.Reply", "ticket_id", ticketID, "role", role)
	if !models.IsValidRole(role) {
		return nil, fmt.Errorf("%w: unknown author role %q", models.ErrInvalidAnswerType, role)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, models.ErrEmptyMessage
	}
	ticket, err := s.st.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == models.TicketClosed {
		slog.Warn("Support.Reply: ticket closed", "ticket_id", ticketID)
		return nil, models.ErrTicketClosed
	}

	now := s.now().UTC()
	msg := models.TicketMessage{
		ID:         uuid.NewString(),
		TicketID:   ticket.ID,
		AuthorRole: role,
		Body:       body,
		CreatedAt:  now,
	}
	if err := s.st.AddTicketMessage(ctx, msg); err != nil {
		slog.Error("Support.Reply: save message failed", "ticket_id", ticketID, "error", err)
		return nil, fmt.Errorf("failed to save ticket message: %w", err)
	}
	if role == models.RoleStaff {
		ticket.Status = models.TicketAnswered
	} else {
		ticket.Status = models.TicketOpen
	}
	ticket.UpdatedAt = now
	if err := s.st.SaveTicket(ctx, *ticket); err != nil {
		slog.Error("Support.Reply: save ticket failed", "ticket_id", ticketID, "error", err)
		return nil, fmt.Errorf("failed to save ticket: %w", err)
	}
	slog.Info("Support.Reply: message added", "ticket_id", ticketID, "role", role, "status", ticket.Status)

	if role == models.RoleStaff {
		s.notifyMember(ctx, ticket)
	}
	return s.Get(ctx, ticketID)
}

// notifyMember tells the member about a staff reply. Failures are logged
// only.
func (s *Service) notifyMember(ctx context.Context, ticket *models.Ticket) {
	profile, err := s.st.GetProfile(ctx, ticket.UserID)
	if err != nil {
		slog.Warn("Support.notifyMember: profile lookup failed", "ticket_id", ticket.ID, "error", err)
		return
	}
	phone := profile.Get(models.ProfilePhone)
	if phone == "" {
		slog.Debug("Support.notifyMember: no phone on profile", "ticket_id", ticket.ID)
		return
	}
	body := fmt.Sprintf("New reply on your support ticket %q. Open DossierPipe to read it.", ticket.Subject)
	if err := s.notifier.Notify(ctx, phone, body); err != nil {
		slog.Warn("Support.notifyMember: notification failed", "ticket_id", ticket.ID, "error", err)
	}
}

// Close marks a ticket closed. Closing a closed ticket is a no-op.
func (s *Service) Close(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.st.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == models.TicketClosed {
		return ticket, nil
	}
	ticket.Status = models.TicketClosed
	ticket.UpdatedAt = s.now().UTC()
	if err := s.st.SaveTicket(ctx, *ticket); err != nil {
		return nil, fmt.Errorf("failed to save ticket: %w", err)
	}
	slog.Info("Support.Close: ticket closed", "ticket_id", ticketID)
	return ticket, nil
}

// Get returns a ticket with its messages.
func (s *Service) Get(ctx context.Context, ticketID string) (*Thread, error) {
	ticket, err := s.st.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.st.ListTicketMessages(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket messages: %w", err)
	}
	return &Thread{Ticket: *ticket, Messages: msgs}, nil
}

// List returns the member's tickets. An empty userID lists every ticket,
// which is the staff view.
func (s *Service) List(ctx context.Context, userID string) ([]models.Ticket, error) {
	tickets, err := s.st.ListTickets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}

func firstLine(body string) string {
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		return strings.TrimSpace(body[:i])
	}
	return body
}
