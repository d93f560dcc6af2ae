package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/DossierPipe/internal/models"
)

type healthStatus struct {
	Enrichment bool     `json:"enrichment"`
	Flows      []string `json:"flows"`
	Documents  []string `json:"documents"`
}

// healthHandler handles GET /healthz
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	flows := make([]string, 0, len(s.catalogs.Types()))
	for _, ft := range s.catalogs.Types() {
		flows = append(flows, string(ft))
	}
	writeJSONResponse(w, http.StatusOK, models.Success(healthStatus{
		Enrichment: s.enricher.Available(),
		Flows:      flows,
		Documents:  s.assembler.Types(),
	}))
}

// getProfileHandler handles GET /profile
func (s *Server) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	profile, err := s.st.GetProfile(r.Context(), userID)
	if err != nil {
		writeError(w, "Server.getProfileHandler", err, nil)
		return
	}
	if profile == nil {
		profile = models.Profile{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(profile))
}

// putProfileHandler handles PUT /profile. The body replaces the stored
// profile; empty values are dropped.
func (s *Server) putProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	var body map[string]string
	if err := decodeJSON(r, &body); err != nil {
		slog.Warn("Server.putProfileHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	profile := models.Profile{}
	for k, v := range body {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			profile[k] = v
		}
	}
	if err := s.st.SaveProfile(r.Context(), userID, profile); err != nil {
		writeError(w, "Server.putProfileHandler", err, nil)
		return
	}
	slog.Info("Server.putProfileHandler: profile saved", "user_id", userID, "fields", len(profile))
	writeJSONResponse(w, http.StatusOK, models.Success(profile))
}
