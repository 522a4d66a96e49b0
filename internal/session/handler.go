package session

import (
	"context"
	"net/http"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/transport"
	"github.com/frahmantamala/admin-dashboard/pkg/logger"
	"github.com/go-chi/chi"
)

type ManagerAPI interface {
	ListActive(ctx context.Context, userID int64) ([]*Session, error)
	Extend(ctx context.Context, sessionID string, hours int) (*Session, error)
	RevokeSession(ctx context.Context, userID int64, sessionID string) (bool, error)
	Stats(ctx context.Context) (*Stats, error)
}

type Handler struct {
	*transport.BaseHandler
	Manager ManagerAPI
}

func NewHandler(m ManagerAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Manager:     m,
	}
}

type SessionView struct {
	*Session
	Current bool `json:"current"`
}

type ExtendRequest struct {
	Hours int `json:"hours"`
}

// ListSessions handles GET /sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	p := internal.PrincipalFromContext(r.Context())
	if p == nil {
		h.WriteAppError(w, r, internal.ErrAuthenticationRequired)
		return
	}

	sessions, err := h.Manager.ListActive(r.Context(), p.ID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	views := make([]SessionView, len(sessions))
	for i, s := range sessions {
		views[i] = SessionView{Session: s, Current: s.SessionID == p.SessionID}
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"sessions": views})
}

// ExtendCurrent handles POST /sessions/extend. Only session-authenticated
// callers have a current session to extend.
func (h *Handler) ExtendCurrent(w http.ResponseWriter, r *http.Request) {
	p := internal.PrincipalFromContext(r.Context())
	if p == nil || p.SessionID == "" {
		h.WriteAppError(w, r, internal.ErrAuthenticationRequired)
		return
	}

	var req ExtendRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if req.Hours < 1 || req.Hours > 24*30 {
		h.WriteAppError(w, r, internal.NewValidationFieldError("hours", "hours must be between 1 and 720", internal.ErrCodeInvalidHours))
		return
	}

	s, err := h.Manager.Extend(r.Context(), p.SessionID, req.Hours)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if s == nil {
		h.WriteAppError(w, r, internal.ErrAuthenticationRequired)
		return
	}
	h.WriteJSON(w, http.StatusOK, SessionView{Session: s, Current: true})
}

// RevokeSession handles DELETE /sessions/{sessionID}
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	p := internal.PrincipalFromContext(r.Context())
	if p == nil {
		h.WriteAppError(w, r, internal.ErrAuthenticationRequired)
		return
	}

	ok, err := h.Manager.RevokeSession(r.Context(), p.ID, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if !ok {
		h.WriteAppError(w, r, internal.ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStats handles GET /admin/sessions/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Manager.Stats(r.Context())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, stats)
}
