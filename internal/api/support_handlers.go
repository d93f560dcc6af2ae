package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/DossierPipe/internal/models"
	"github.com/BTreeMap/DossierPipe/internal/support"
	"github.com/go-chi/chi/v5"
)

type openTicketRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type replyRequest struct {
	Body string `json:"body"`
}

// loadThread returns a ticket thread the caller may see: staff see every
// ticket, members only their own.
func (s *Server) loadThread(ctx context.Context, r *http.Request, id string) (*support.Thread, error) {
	th, err := s.support.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if roleFrom(r) != models.RoleStaff && th.Ticket.UserID != userFrom(r) {
		return nil, fmt.Errorf("ticket %s: %w", id, models.ErrNotFound)
	}
	return th, nil
}

// openTicketHandler handles POST /tickets
func (s *Server) openTicketHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.openTicketHandler"
	var req openTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.Warn(op+": failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	th, err := s.support.Open(r.Context(), userFrom(r), req.Subject, req.Body)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(th))
}

// listTicketsHandler handles GET /tickets
func (s *Server) listTicketsHandler(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if roleFrom(r) == models.RoleStaff {
		userID = ""
	}
	tickets, err := s.support.List(r.Context(), userID)
	if err != nil {
		writeError(w, "Server.listTicketsHandler", err, nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(tickets))
}

// getTicketHandler handles GET /tickets/{id}
func (s *Server) getTicketHandler(w http.ResponseWriter, r *http.Request) {
	th, err := s.loadThread(r.Context(), r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "Server.getTicketHandler", err, nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(th))
}

// replyTicketHandler handles POST /tickets/{id}/messages
func (s *Server) replyTicketHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.replyTicketHandler"
	ctx := r.Context()
	th, err := s.loadThread(ctx, r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	var req replyRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.Warn(op+": failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	th, err = s.support.Reply(ctx, th.Ticket.ID, roleFrom(r), req.Body)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(th))
}

// closeTicketHandler handles POST /tickets/{id}/close
func (s *Server) closeTicketHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.closeTicketHandler"
	ctx := r.Context()
	th, err := s.loadThread(ctx, r, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	ticket, err := s.support.Close(ctx, th.Ticket.ID)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(ticket))
}
