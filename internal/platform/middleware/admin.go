package middleware

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"entrypass/pkg/requestcontext"
)

// RequireAdminKey guards debug/admin endpoints. The plaintext key arrives in
// X-Admin-Key and is compared against the configured bcrypt hash so the
// secret itself never lives in config. An empty hash disables the surface
// entirely (404, not 403, to avoid advertising it).
func RequireAdminKey(adminKeyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKeyHash == "" {
				http.NotFound(w, r)
				return
			}
			key := r.Header.Get("X-Admin-Key")
			if key == "" || bcrypt.CompareHashAndPassword([]byte(adminKeyHash), []byte(key)) != nil {
				logger.WarnContext(r.Context(), "admin key rejected",
					"request_id", requestcontext.RequestID(r.Context()),
					"client_ip", requestcontext.ClientIP(r.Context()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"invalid admin key"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
