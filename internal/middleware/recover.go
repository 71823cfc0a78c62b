package middleware

import (
	"net/http"

	"key_gateway/internal/utils"
)

// Recover converts a handler panic into a generic 500 envelope so a
// single bad request cannot take the process down.
func Recover(log *utils.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error("panic while handling request",
						"method", r.Method, "path", r.URL.Path, "panic", rec)
					utils.RespondWithError(w, http.StatusInternalServerError, "An unexpected error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
