package user

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
	"github.com/frahmantamala/admin-dashboard/internal/session"
	"github.com/frahmantamala/admin-dashboard/internal/transport"
	"github.com/frahmantamala/admin-dashboard/pkg/logger"
)

type ServiceAPI interface {
	Register(ctx context.Context, dto RegisterDTO) (*user.User, error)
	GetByUserID(ctx context.Context, userID string) (*user.User, error)
	ChangePassword(ctx context.Context, id int64, dto ChangePasswordDTO) error
	Deactivate(ctx context.Context, id int64) error
	Activate(ctx context.Context, id int64) error
	ChangeRole(ctx context.Context, id int64, role string) (*user.User, error)
}

type SessionAdmin interface {
	ForceLogout(ctx context.Context, userID int64) (int64, error)
	DetectSuspiciousActivity(ctx context.Context, userID int64) (*session.ActivityReport, error)
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Sessions SessionAdmin
}

func NewHandler(svc ServiceAPI, sessions SessionAdmin) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
		Sessions:    sessions,
	}
}

// Register is the public sign-up endpoint; it never honours a requested role.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	dto.Role = ""

	u, err := h.Service.Register(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u.Profile())
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p := internal.PrincipalFromContext(r.Context())
	if p == nil {
		h.WriteAppError(w, r, internal.ErrAuthenticationRequired)
		return
	}

	var dto ChangePasswordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if err := h.Service.ChangePassword(r.Context(), p.ID, dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// target resolves the {id} path parameter, a public user id.
func (h *Handler) target(w http.ResponseWriter, r *http.Request) *user.User {
	u, err := h.Service.GetByUserID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteAppError(w, r, err)
		return nil
	}
	return u
}

// managedTarget is target for state-changing actions: the caller may not act
// on an account whose role ranks above their own.
func (h *Handler) managedTarget(w http.ResponseWriter, r *http.Request) *user.User {
	p := internal.PrincipalFromContext(r.Context())
	if p == nil {
		h.WriteAppError(w, r, internal.ErrAuthenticationRequired)
		return nil
	}
	u := h.target(w, r)
	if u == nil {
		return nil
	}
	if u.Role.Rank() > p.Role.Rank() {
		h.WriteAppError(w, r, internal.ErrRoleOutranked)
		return nil
	}
	return u
}

func (h *Handler) ForceLogout(w http.ResponseWriter, r *http.Request) {
	u := h.managedTarget(w, r)
	if u == nil {
		return
	}
	n, err := h.Sessions.ForceLogout(r.Context(), u.ID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":              u.UserID,
		"sessions_invalidated": n,
	})
}

func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	u := h.target(w, r)
	if u == nil {
		return
	}
	report, err := h.Sessions.DetectSuspiciousActivity(r.Context(), u.ID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	u := h.managedTarget(w, r)
	if u == nil {
		return
	}
	if err := h.Service.Deactivate(r.Context(), u.ID); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	u := h.managedTarget(w, r)
	if u == nil {
		return
	}
	if err := h.Service.Activate(r.Context(), u.ID); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var dto ChangeRoleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if verr := dto.Validate(); verr != nil {
		h.WriteAppError(w, r, verr)
		return
	}

	u := h.managedTarget(w, r)
	if u == nil {
		return
	}
	if role, _ := rbac.ParseRole(dto.Role); role.Rank() > internal.PrincipalFromContext(r.Context()).Role.Rank() {
		h.WriteAppError(w, r, internal.ErrRoleOutranked)
		return
	}
	updated, err := h.Service.ChangeRole(r.Context(), u.ID, dto.Role)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, updated.Profile())
}
