package middleware

import (
	"crypto/subtle"
	"net/http"

	apperrors "github.com/ragbench/rag-bench/internal/pkg/errors"
)

// APIKeyAuth enforces a shared API key on every request. Requests must carry
// the key in the X-API-Key header. An empty configured key disables the check.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				apperrors.WriteJSON(w, http.StatusUnauthorized, apperrors.ErrorResponse{
					Error:   "invalid or missing API key",
					Code:    apperrors.CodeInvalidRequest,
					Message: "invalid or missing API key",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
