package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"key_gateway/internal/auth"
	"key_gateway/internal/engine"
	"key_gateway/internal/utils"
)

// CredentialSource is the engine capability the key endpoint consumes
type CredentialSource interface {
	ObtainCredential(ctx context.Context, identity *auth.UserClaims) (*engine.Credential, error)
}

// KeyHandler serves the subscriber-facing credential endpoint. Token
// verification happens here, before any store or provider work, so a
// rejected request never touches downstream systems.
type KeyHandler struct {
	source    CredentialSource
	jwtSecret []byte
	log       *utils.Logger
}

// NewKeyHandler creates the credential endpoint handler
func NewKeyHandler(source CredentialSource, jwtSecret []byte, log *utils.Logger) *KeyHandler {
	if log == nil {
		log = utils.NewLogger("http")
	}
	return &KeyHandler{
		source:    source,
		jwtSecret: jwtSecret,
		log:       log,
	}
}

func (h *KeyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		utils.RespondWithError(w, http.StatusForbidden, "Authorization header missing")
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		utils.RespondWithError(w, http.StatusForbidden, "Token missing from authorization header")
		return
	}

	claims, err := auth.VerifyToken(parts[1], h.jwtSecret)
	if err != nil {
		if errors.Is(err, auth.ErrSecretMissing) {
			h.log.Error("token verification misconfigured", "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	cred, err := h.source.ObtainCredential(r.Context(), claims)
	if err != nil {
		h.respondEngineError(w, claims.UserID, err)
		return
	}

	utils.RespondWithData(w, http.StatusOK, cred)
}

func (h *KeyHandler) respondEngineError(w http.ResponseWriter, userID string, err error) {
	var upstream *engine.UpstreamError
	if errors.As(err, &upstream) {
		h.log.Error("upstream provider failure", "user_id", userID, "error", err)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Upstream provider error")
		return
	}

	if errors.Is(err, engine.ErrInvalidKeyResponse) {
		h.log.Error("invalid provider key response", "user_id", userID)
		utils.RespondWithError(w, http.StatusInternalServerError, "Invalid response from provider")
		return
	}

	h.log.Error("failed to process key request", "user_id", userID, "error", err)
	utils.RespondWithError(w, http.StatusInternalServerError, "Failed to process key request")
}
