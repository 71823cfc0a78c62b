package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"key_gateway/internal/models"
	"key_gateway/internal/utils"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// UserLister is the store capability the admin endpoint consumes
type UserLister interface {
	List(ctx context.Context, limit int) ([]*models.User, error)
}

// AdminHandler serves the operator endpoints
type AdminHandler struct {
	users UserLister
	log   *utils.Logger
}

// NewAdminHandler creates the operator endpoint handler
func NewAdminHandler(users UserLister, log *utils.Logger) *AdminHandler {
	if log == nil {
		log = utils.NewLogger("admin")
	}
	return &AdminHandler{users: users, log: log}
}

// ListUsers handles GET /admin/users. Provider secrets never appear in
// the response; the user model excludes them from serialization.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	users, err := h.users.List(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to list users", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	utils.RespondWithData(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"count": len(users),
	})
}
