package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ahava-health/ahava-api/internal/domain/audit"
	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
	"github.com/ahava-health/ahava-api/internal/ports"
)

const overviewAuditLimit = 20

// ActiveSessionCounter counts unexpired sessions. Only the Postgres store supports it.
type ActiveSessionCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

// AdminHandlers serves the admin overview.
type AdminHandlers struct {
	Accounts ports.AccountStats
	Audit    ports.AuditReader
	Sessions ActiveSessionCounter // Optional
	Logger   *slog.Logger
}

type auditJSON struct {
	UserID    string       `json:"user_id,omitempty"`
	Action    audit.Action `json:"action"`
	IP        string       `json:"ip,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type overviewResponse struct {
	Viewer         userJSON                  `json:"viewer"`
	UsersByRole    map[domainauth.Role]int64 `json:"users_by_role"`
	ActiveSessions *int64                    `json:"active_sessions,omitempty"`
	RecentActivity []auditJSON               `json:"recent_activity"`
}

// Overview returns account counts and recent authentication activity.
// GET /api/admin/overview.
func (h *AdminHandlers) Overview(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id, _ := IdentityFromContext(r.Context())

	counts, err := h.Accounts.CountByRole(r.Context())
	if err != nil {
		writeAppError(w, r, logger, err)
		return
	}

	resp := overviewResponse{
		Viewer:         userJSON{ID: id.UserID, Email: id.Email, Role: id.Role},
		UsersByRole:    counts,
		RecentActivity: []auditJSON{},
	}

	if h.Sessions != nil {
		n, countErr := h.Sessions.CountActive(r.Context())
		if countErr != nil {
			writeAppError(w, r, logger, countErr)
			return
		}
		resp.ActiveSessions = &n
	}

	if h.Audit != nil {
		entries, auditErr := h.Audit.Recent(r.Context(), overviewAuditLimit)
		if auditErr != nil {
			writeAppError(w, r, logger, auditErr)
			return
		}
		for _, e := range entries {
			resp.RecentActivity = append(resp.RecentActivity, auditJSON{
				UserID:    e.UserID,
				Action:    e.Action,
				IP:        e.IP,
				CreatedAt: e.CreatedAt.UTC(),
			})
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}
