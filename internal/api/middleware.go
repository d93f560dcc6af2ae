package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/DossierPipe/internal/models"
	"github.com/go-chi/chi/v5/middleware"
)

// Request headers identifying the caller.
const (
	HeaderUserID = "X-User-ID"
	HeaderRole   = "X-Role"
)

type ctxKey int

const userIDKey ctxKey = iota

// requestLogger logs every request at debug level with its status and
// duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "dur", time.Since(start), "remote", r.RemoteAddr)
	})
}

// requireUser rejects requests without an X-User-ID header. The caller is
// trusted to identify the member.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			slog.Warn("requireUser: missing user header", "path", r.URL.Path)
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Missing "+HeaderUserID+" header"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// userFrom returns the member id set by requireUser.
func userFrom(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// roleFrom returns the author role of the caller. Anything other than
// "staff" is a member.
func roleFrom(r *http.Request) models.AuthorRole {
	if strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderRole)), string(models.RoleStaff)) {
		return models.RoleStaff
	}
	return models.RoleMember
}
