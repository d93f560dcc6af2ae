package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/DossierPipe/internal/models"
	"github.com/BTreeMap/DossierPipe/internal/render"
)

// Pre-marshaled fallback responses to avoid runtime JSON encoding failures
var (
	fallbackErrorResponse []byte
)

// init validates that our fallback responses can be marshaled
func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal first so encoding errors are caught before headers are written
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeError maps err onto a status code and response envelope. Validation
// errors ask the caller to retry and carry retryResult, usually the
// re-asked turn.
func writeError(w http.ResponseWriter, op string, err error, retryResult interface{}) {
	switch {
	case models.IsValidationError(err):
		slog.Debug(op+": input rejected", "error", err)
		writeJSONResponse(w, http.StatusOK, models.Retry(err.Error(), retryResult))
	case errors.Is(err, models.ErrUnknownType):
		slog.Warn(op+": unknown type", "error", err)
		writeJSONResponse(w, http.StatusOK, models.Error(err.Error()))
	case errors.Is(err, models.ErrInvalidFlowState):
		slog.Warn(op+": invalid flow state", "error", err)
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	case errors.Is(err, models.ErrEnrichmentUnavailable):
		slog.Error(op+": enrichment unavailable", "error", err)
		writeJSONResponse(w, http.StatusServiceUnavailable, models.RetryableError("Guide generation is temporarily unavailable, please try again"))
	case errors.Is(err, models.ErrNotFound):
		slog.Warn(op+": not found", "error", err)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	case errors.Is(err, models.ErrTicketClosed):
		slog.Warn(op+": ticket closed", "error", err)
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	case errors.Is(err, models.ErrEmptyMessage), errors.Is(err, render.ErrUnsupportedFormat):
		slog.Warn(op+": bad request", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	default:
		slog.Error(op+": failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}

// decodeJSON decodes the request body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
