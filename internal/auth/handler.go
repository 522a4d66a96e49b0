package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
	"github.com/frahmantamala/admin-dashboard/internal/session"
	"github.com/frahmantamala/admin-dashboard/internal/transport"
	"github.com/frahmantamala/admin-dashboard/pkg/logger"
)

type ServiceAPI interface {
	AuthenticateUser(ctx context.Context, identifier, password string) (*user.User, error)
	IssueSession(ctx context.Context, u *user.User, opts SessionOptions) (string, *session.Session, error)
	IssueJWT(u *user.User) (string, time.Time, error)
	InvalidateSession(ctx context.Context, token string) (bool, error)
	RotateSession(ctx context.Context, token string, opts SessionOptions) (string, *session.Session, error)
	SessionTTL(rememberMe bool) time.Duration
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Cookie   CookieConfig
	// ClientIP names the caller recorded on new sessions.
	ClientIP func(r *http.Request) string
}

func NewHandler(svc ServiceAPI, cookie CookieConfig) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
		Cookie:      cookie,
		ClientIP:    transport.ClientIP,
	}
}

func (h *Handler) sessionOptions(r *http.Request, rememberMe bool) SessionOptions {
	clientIP := h.ClientIP
	if clientIP == nil {
		clientIP = transport.ClientIP
	}
	return SessionOptions{
		RememberMe: rememberMe,
		UserAgent:  r.UserAgent(),
		IPAddress:  clientIP(r),
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if verr := dto.Validate(); verr != nil {
		h.WriteAppError(w, r, verr)
		return
	}

	u, err := h.Service.AuthenticateUser(r.Context(), dto.LoginIdentifier(), dto.Password)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if u == nil {
		h.WriteAppError(w, r, internal.ErrInvalidCredentials)
		return
	}

	ttl := h.Service.SessionTTL(dto.RememberMe)
	sessionToken, sess, err := h.Service.IssueSession(r.Context(), u, h.sessionOptions(r, dto.RememberMe))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	accessToken, accessExpiry, err := h.Service.IssueJWT(u)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.Cookie.SetSessionCookie(w, sessionToken, ttl)
	h.WriteJSON(w, http.StatusOK, LoginResponse{
		User:                 u.Profile(),
		SessionToken:         sessionToken,
		AccessToken:          accessToken,
		TokenType:            "Bearer",
		ExpiresAt:            sess.ExpiresAt.UTC(),
		AccessTokenExpiresAt: accessExpiry,
	})
}

// sessionToken prefers the cookie, then a bearer value shaped like a
// session token.
func (h *Handler) sessionToken(r *http.Request) string {
	creds := h.Cookie.CredentialsFromRequest(r)
	if creds.SessionToken != "" {
		return creds.SessionToken
	}
	if _, _, ok := session.ParseToken(creds.BearerToken); ok {
		return creds.BearerToken
	}
	return ""
}

// Logout invalidates the presented session. A JWT-only caller has nothing
// server side to revoke; the response is the same.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.sessionToken(r); token != "" {
		if _, err := h.Service.InvalidateSession(r.Context(), token); err != nil {
			h.WriteAppError(w, r, err)
			return
		}
	}
	h.Cookie.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(r)
	if token == "" {
		h.WriteAppError(w, r, internal.ErrAuthenticationRequired)
		return
	}

	next, sess, err := h.Service.RotateSession(r.Context(), token, h.sessionOptions(r, false))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	if next == "" {
		h.Cookie.ClearSessionCookie(w)
		h.WriteAppError(w, r, internal.ErrAuthenticationRequired)
		return
	}

	ttl := h.Service.SessionTTL(false)
	h.Cookie.SetSessionCookie(w, next, ttl)
	h.WriteJSON(w, http.StatusOK, RefreshResponse{
		SessionToken: next,
		ExpiresAt:    sess.ExpiresAt.UTC(),
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := internal.PrincipalFromContext(r.Context())
	if p == nil {
		h.WriteAppError(w, r, internal.ErrAuthenticationRequired)
		return
	}
	h.WriteJSON(w, http.StatusOK, MeResponse{
		AuthenticatedUser: p,
		IsAdmin:           p.IsAdmin(),
		Permissions:       p.Permissions.Strings(),
	})
}
