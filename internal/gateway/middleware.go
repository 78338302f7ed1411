package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/quill/internal/auth"
)

// requireAuth verifies the bearer token and injects the identity into the
// request context. The response never distinguishes a missing token from
// a bad one.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeErrorBody(w, http.StatusUnauthorized, "auth_failed", "missing or invalid credentials", false)
			return
		}

		identity, err := s.verifier.Verify(token)
		if err != nil {
			writeErrorBody(w, http.StatusUnauthorized, "auth_failed", "missing or invalid credentials", false)
			return
		}

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		s.logger.Debug("request served",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"owner", identity.OwnerID,
			"elapsed", time.Since(start))
	})
}

func authIdentity(r *http.Request) (auth.Identity, bool) {
	return auth.IdentityFromContext(r.Context())
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string, retryable bool) {
	writeJSON(w, status, map[string]any{
		"error_code":    code,
		"error_message": message,
		"retryable":     retryable,
	})
}
