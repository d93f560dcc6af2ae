package models

import "time"

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	// TicketOpen is waiting for a staff reply.
	TicketOpen TicketStatus = "open"
	// TicketAnswered has a staff reply the member has not responded to.
	TicketAnswered TicketStatus = "answered"
	// TicketClosed accepts no further messages.
	TicketClosed TicketStatus = "closed"
)

// AuthorRole identifies which party wrote a ticket message.
type AuthorRole string

const (
	RoleMember AuthorRole = "member"
	RoleStaff  AuthorRole = "staff"
)

// Ticket is a two-party support thread between a member and staff.
type Ticket struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Subject   string       `json:"subject"`
	Status    TicketStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TicketMessage is one message of a ticket thread.
type TicketMessage struct {
	ID         string     `json:"id"`
	TicketID   string     `json:"ticket_id"`
	AuthorRole AuthorRole `json:"author_role"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsValidRole reports whether r is a known author role.
func IsValidRole(r AuthorRole) bool {
	switch r {
	case RoleMember, RoleStaff:
		return true
	default:
		return false
	}
}
