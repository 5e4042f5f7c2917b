package httpx

import (
	"log/slog"
	"net/http"
	"time"
)

// SessionHandlers reports on the caller's own session.
type SessionHandlers struct {
	Roles  RoleResolver
	Logger *slog.Logger
}

type sessionResponse struct {
	User      userJSON  `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Status returns the authenticated user and session expiry.
// GET /api/session.
func (h *SessionHandlers) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, Error: msgUnauthorized})
		return
	}

	role := id.Role
	if role == "" && h.Roles != nil {
		var err error
		if role, err = h.Roles.RoleOf(r.Context(), id.UserID); err != nil {
			logger := h.Logger
			if logger == nil {
				logger = slog.Default()
			}
			writeAppError(w, r, logger, err)
			return
		}
	}

	WriteJSON(w, http.StatusOK, sessionResponse{
		User:      userJSON{ID: id.UserID, Email: id.Email, Role: role},
		ExpiresAt: id.SessionExpiresAt.UTC(),
	})
}
