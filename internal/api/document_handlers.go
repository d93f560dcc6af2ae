package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/BTreeMap/DossierPipe/internal/enrich"
	"github.com/BTreeMap/DossierPipe/internal/genai"
	"github.com/BTreeMap/DossierPipe/internal/models"
	"github.com/BTreeMap/DossierPipe/internal/render"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type documentRequest struct {
	Answers models.Answers `json:"answers"`
}

type documentResponse struct {
	ID          string                      `json:"id"`
	Description *models.DocumentDescription `json:"description"`
}

// guideResponse is a GuideResult with the id its document was stored under.
type guideResponse struct {
	ID string `json:"id"`
	*enrich.GuideResult
}

// answersFor returns the given answers, or the member's persisted answers
// for the flow when none were sent. Either way they are re-checked against
// the flow's catalog before use.
func (s *Server) answersFor(ctx context.Context, userID string, ft models.FlowType, given models.Answers) (models.Answers, error) {
	if _, ok := s.catalogs.Get(ft); !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownType, ft)
	}
	if given == nil {
		state, err := s.st.GetFlowState(ctx, userID, ft)
		if err != nil {
			return nil, err
		}
		if state == nil {
			return models.Answers{}, nil
		}
		given = state.Answers
	}
	return s.sessions.Machine().Sanitize(ft, given)
}

// storeDocument persists desc for the member and returns its id.
func (s *Server) storeDocument(ctx context.Context, userID string, desc *models.DocumentDescription) (string, error) {
	doc := models.StoredDocument{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        desc.Type,
		Description: *desc,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.st.SaveDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to save document: %w", err)
	}
	return doc.ID, nil
}

// loadDocument returns the member's stored document. Documents of other
// members are reported as not found.
func (s *Server) loadDocument(ctx context.Context, userID, id string) (*models.StoredDocument, error) {
	doc, err := s.st.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return doc, nil
}

// createDocumentHandler handles POST /documents/{docType}
func (s *Server) createDocumentHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.createDocumentHandler"
	docType := chi.URLParam(r, "ref")
	userID := userFrom(r)
	if !s.assembler.Has(docType) {
		writeError(w, op, fmt.Errorf("%w: %s", models.ErrUnknownType, docType), nil)
		return
	}
	var req documentRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.Warn(op+": failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	ctx := r.Context()
	answers, err := s.answersFor(ctx, userID, models.FlowType(docType), req.Answers)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	profile, err := s.st.GetProfile(ctx, userID)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	desc, err := s.assembler.Assemble(docType, answers, profile)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	id, err := s.storeDocument(ctx, userID, desc)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	slog.Info(op+": document assembled", "user_id", userID, "type", docType, "id", id)
	writeJSONResponse(w, http.StatusOK, models.Success(documentResponse{ID: id, Description: desc}))
}

// listDocumentsHandler handles GET /documents
func (s *Server) listDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := s.st.ListDocuments(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, "Server.listDocumentsHandler", err, nil)
		return
	}
	if docs == nil {
		docs = []models.StoredDocument{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(docs))
}

// getDocumentHandler handles GET /documents/{id}
func (s *Server) getDocumentHandler(w http.ResponseWriter, r *http.Request) {
	doc, err := s.loadDocument(r.Context(), userFrom(r), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, "Server.getDocumentHandler", err, nil)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(doc))
}

// exportDocumentHandler handles GET /documents/{id}/export?format=pdf|txt
func (s *Server) exportDocumentHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.exportDocumentHandler"
	doc, err := s.loadDocument(r.Context(), userFrom(r), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	file, err := render.Export(&doc.Description, render.Format(strings.ToLower(r.URL.Query().Get("format"))))
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Data); err != nil {
		slog.Error(op+": failed to write file", "error", err)
	}
}

// createGuideHandler handles POST /guides/{guideType}
func (s *Server) createGuideHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.createGuideHandler"
	guideType := models.FlowType(chi.URLParam(r, "guideType"))
	var req documentRequest
	if err := decodeJSON(r, &req); err != nil {
		slog.Warn(op+": failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	s.generateGuide(w, r, op, guideType, req.Answers, nil)
}

// verifyInsuranceHandler handles POST /guides/health_insurance_verification/verify
// with the policy document in the multipart field "file" and optional
// answers as JSON in the field "answers".
func (s *Server) verifyInsuranceHandler(w http.ResponseWriter, r *http.Request) {
	const op = "Server.verifyInsuranceHandler"
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		slog.Warn(op+": invalid multipart form", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid multipart form or file too large"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, op, fmt.Errorf("%w: policy document field \"file\" is required", models.ErrMissingAnswer), nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, op, fmt.Errorf("read upload: %w", err), nil)
		return
	}
	att := &genai.Attachment{Name: header.Filename, MediaType: mediaTypeOf(header.Header.Get("Content-Type"), data), Data: data}
	if !att.IsPDF() && !att.IsImage() {
		writeError(w, op, fmt.Errorf("%w: policy must be a PDF or an image, got %s", models.ErrInvalidAnswerType, att.MediaType), nil)
		return
	}

	var answers models.Answers
	if raw := r.FormValue("answers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &answers); err != nil {
			slog.Warn(op+": invalid answers field", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON in answers field"))
			return
		}
	}
	s.generateGuide(w, r, op, models.FlowHealthInsuranceVerification, answers, att)
}

// mediaTypeOf returns the declared media type without parameters, sniffing
// the content when the client sent none.
func mediaTypeOf(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}

func (s *Server) generateGuide(w http.ResponseWriter, r *http.Request, op string, guideType models.FlowType, given models.Answers, att *genai.Attachment) {
	ctx := r.Context()
	userID := userFrom(r)
	answers, err := s.answersFor(ctx, userID, guideType, given)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	profile, err := s.st.GetProfile(ctx, userID)
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	result, err := s.enricher.Generate(ctx, enrich.GuideRequest{
		GuideType:  guideType,
		Answers:    answers,
		Profile:    profile,
		Attachment: att,
	})
	if err != nil {
		writeError(w, op, err, nil)
		return
	}
	id, err := s.storeDocument(ctx, userID, result.Document)
	if err != nil {
		slog.Error(op+": failed to store guide", "user_id", userID, "error", err)
	}
	slog.Info(op+": guide generated", "user_id", userID, "type", guideType, "enriched", result.Enriched, "id", id)
	writeJSONResponse(w, http.StatusOK, models.Success(guideResponse{ID: id, GuideResult: result}))
}
