package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
	"github.com/frahmantamala/admin-dashboard/internal/core/user"
	"github.com/frahmantamala/admin-dashboard/internal/transport"
)

type Outcome int

const (
	Allowed Outcome = iota
	Unauthenticated
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case Allowed:
		return "allowed"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "forbidden"
	}
}

// Decision is the result of a permission check. Missing lists the
// permissions that would have been needed.
type Decision struct {
	Outcome Outcome
	Missing []rbac.Permission
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allowed
}

// Err maps a refusal onto the error taxonomy; nil when allowed.
func (d Decision) Err() error {
	switch d.Outcome {
	case Allowed:
		return nil
	case Unauthenticated:
		return internal.ErrAuthenticationRequired
	default:
		missing := make([]string, len(d.Missing))
		for i, p := range d.Missing {
			missing[i] = string(p)
		}
		return internal.NewPermissionDeniedError(missing...)
	}
}

// Authorize requires every permission in perms.
func Authorize(p *user.AuthenticatedUser, perms ...rbac.Permission) Decision {
	if p == nil {
		return Decision{Outcome: Unauthenticated}
	}
	if missing := p.Permissions.Missing(perms...); len(missing) > 0 {
		return Decision{Outcome: Forbidden, Missing: missing}
	}
	return Decision{Outcome: Allowed}
}

// AuthorizeAny requires at least one permission in perms. An empty perms
// list is never satisfied.
func AuthorizeAny(p *user.AuthenticatedUser, perms ...rbac.Permission) Decision {
	if p == nil {
		return Decision{Outcome: Unauthenticated}
	}
	if !p.HasAnyPermission(perms...) {
		return Decision{Outcome: Forbidden, Missing: perms}
	}
	return Decision{Outcome: Allowed}
}

type RBACAuthorization struct {
	*transport.BaseHandler
	logger *slog.Logger
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	if logger == nil {
		logger = slog.Default()
	}
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger),
		logger:      logger,
	}
}

func (ra *RBACAuthorization) check(decide func(*user.AuthenticatedUser) Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := internal.PrincipalFromContext(r.Context())
			d := decide(p)
			if !d.Allowed() {
				if p != nil {
					ra.logger.WarnContext(r.Context(), "access denied: insufficient permissions",
						"user_id", p.UserID,
						"role", p.Role,
						"missing", d.Missing)
				}
				ra.WriteAppError(w, r, d.Err())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (ra *RBACAuthorization) RequirePermissions(perms ...rbac.Permission) func(http.Handler) http.Handler {
	return ra.check(func(p *user.AuthenticatedUser) Decision {
		return Authorize(p, perms...)
	})
}

func (ra *RBACAuthorization) RequireAnyPermission(perms ...rbac.Permission) func(http.Handler) http.Handler {
	return ra.check(func(p *user.AuthenticatedUser) Decision {
		return AuthorizeAny(p, perms...)
	})
}
