package middleware

import (
	"net/http"
	"strings"

	"key_gateway/internal/auth"
	"key_gateway/internal/utils"
)

// AdminToken guards the operator surface with a static service token,
// verified against its argon2id hash so the plaintext never lives in
// the environment of the running service.
func AdminToken(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			ok, err := auth.VerifyAdminToken(token, tokenHash)
			if err != nil || !ok {
				utils.RespondWithError(w, http.StatusForbidden, "Invalid admin token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
