package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
	"github.com/frahmantamala/admin-dashboard/internal/transport"
	"github.com/frahmantamala/admin-dashboard/pkg/logger"
)

const DefaultCookieName = "session_token"

type Resolver interface {
	ResolveRequest(ctx context.Context, creds Credentials) (*user.AuthenticatedUser, error)
}

type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return DefaultCookieName
	}
	return c.Name
}

// SetSessionCookie writes an HttpOnly, SameSite=Lax cookie holding token.
func (c CookieConfig) SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieConfig) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CredentialsFromRequest collects the session cookie and bearer header.
func (c CookieConfig) CredentialsFromRequest(r *http.Request) Credentials {
	creds := Credentials{BearerToken: transport.BearerToken(r)}
	if cookie, err := r.Cookie(c.name()); err == nil {
		creds.SessionToken = cookie.Value
	}
	return creds
}

type Middleware struct {
	*transport.BaseHandler
	resolver Resolver
	cookie   CookieConfig
}

func NewMiddleware(resolver Resolver, cookie CookieConfig) *Middleware {
	return &Middleware{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		resolver:    resolver,
		cookie:      cookie,
	}
}

// Authenticate rejects requests that carry no resolvable credential.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.resolver.ResolveRequest(r.Context(), m.cookie.CredentialsFromRequest(r))
		if err != nil {
			m.WriteAppError(w, r, internal.NewInternalError("Internal server error", err))
			return
		}
		if p == nil {
			m.WriteAppError(w, r, internal.ErrAuthenticationRequired)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}

// Optional attaches a principal when one resolves and otherwise passes the
// request through untouched.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.resolver.ResolveRequest(r.Context(), m.cookie.CredentialsFromRequest(r))
		if err != nil {
			logger.From(r.Context()).WarnContext(r.Context(), "optional authentication failed", "error", err)
		}
		if p != nil {
			r = r.WithContext(withPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

func withPrincipal(ctx context.Context, p *user.AuthenticatedUser) context.Context {
	ctx = internal.ContextWithPrincipal(ctx, p)
	return logger.With(ctx, "user_id", p.UserID, "auth_method", string(p.AuthMethod))
}
