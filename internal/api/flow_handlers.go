package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/DossierPipe/internal/models"
	"github.com/go-chi/chi/v5"
)

type answerRequest struct {
	Step    int                `json:"step"`
	Answers models.Answers     `json:"answers"`
	Value   models.AnswerValue `json:"value"`
}

type isLastRequest struct {
	Step    int            `json:"step"`
	Answers models.Answers `json:"answers"`
}

// flowTypeParam reads {flowType} and reports unknown types to the client.
func (s *Server) flowTypeParam(w http.ResponseWriter, r *http.Request, op string) (models.FlowType, bool) {
	ft := models.FlowType(chi.URLParam(r, "flowType"))
	if _, ok := s.catalogs.Get(ft); !ok {
		writeError(w, op, fmt.Errorf("%w: %s", models.ErrUnknownType, ft), nil)
		return "", false
	}
	return ft, true
}

// listFlowsHandler handles GET /flows
func (s *Server) listFlowsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.catalogs.Types()))
}

// startFlowHandler handles POST /flows/{flowType}/start
func (s *Server) startFlowHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.startFlowHandler"
	ft, ok := s.flowTypeParam(w, r, op)
	if !ok {
		return
	}
	turn, err := s.sessions.Start(r.Context(), userFrom(r), ft)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turn))
}

// answerFlowHandler handles POST /flows/{flowType}/answer
func (s *Server) answerFlowHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.answerFlowHandler"
	ft, ok := s.flowTypeParam(w, r, op)
	if !ok {
		return
	}
	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.Warn(op+": failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	turn, err := s.sessions.Submit(r.Context(), userFrom(r), ft, req.Step, req.Answers, req.Value)
	if err != nil {
		writeError(w, op, err, turn)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turn))
}

// isLastQuestionHandler handles POST /flows/{flowType}/is-last
func (s *Server) isLastQuestionHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.isLastQuestionHandler"
	ft, ok := s.flowTypeParam(w, r, op)
	if !ok {
		return
	}
	var req isLastRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.Warn(op+": failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	last, err := s.sessions.IsLastQuestion(r.Context(), userFrom(r), ft, req.Step, req.Answers)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(last))
}

// getFlowHandler handles GET /flows/{flowType}
func (s *Server) getFlowHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.getFlowHandler"
	ft, ok := s.flowTypeParam(w, r, op)
	if !ok {
		return
	}
	state, err := s.sessions.Current(r.Context(), userFrom(r), ft)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

// resetFlowHandler handles DELETE /flows/{flowType}
func (s *Server) resetFlowHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.resetFlowHandler"
	ft, ok := s.flowTypeParam(w, r, op)
	if !ok {
		return
	}
	if err := s.sessions.Reset(r.Context(), userFrom(r), ft); err != nil {
		writeError(w, op, err, nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Flow reset", nil))
}
