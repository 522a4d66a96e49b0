package rest

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/admin-dashboard/internal/auth"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
	"github.com/frahmantamala/admin-dashboard/internal/observability"
	"github.com/frahmantamala/admin-dashboard/internal/ratelimit"
	"github.com/frahmantamala/admin-dashboard/internal/session"
	"github.com/frahmantamala/admin-dashboard/internal/transport"
	"github.com/frahmantamala/admin-dashboard/internal/transport/middleware"
	"github.com/frahmantamala/admin-dashboard/internal/transport/swagger"
	"github.com/frahmantamala/admin-dashboard/internal/user"
)

// Dependencies is everything the HTTP surface needs. Nil handlers leave
// their routes unregistered.
type Dependencies struct {
	Health         *HealthHandler
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.Middleware
	RBAC           *auth.RBACAuthorization
	UserHandler    *user.Handler
	SessionHandler *session.Handler

	LoginLimiter ratelimit.Limiter
	ClientIP     *transport.ClientIPResolver
	Metrics      *observability.Metrics
	MetricsPath  string

	AllowedOrigins []string
	OpenAPIPath    string
	Logger         *slog.Logger
}

func RegisterAllRoutes(router chi.Router, deps Dependencies) {
	health := deps.Health
	if health == nil {
		health = NewHealthHandler(nil)
	}
	if deps.OpenAPIPath == "" {
		deps.OpenAPIPath = "./api/openapi.yml"
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggingMiddleware(deps.Logger))

	router.Get(swagger.DocumentURL, openAPIDocument(deps.OpenAPIPath))
	router.Handle("/swagger/*", swagger.Handler())

	if deps.MetricsPath != "" {
		router.Handle(deps.MetricsPath, deps.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.healthCheckHandler)
		r.Get("/ping", health.pingHandler)

		if deps.AuthHandler == nil || deps.AuthMiddleware == nil {
			return
		}

		r.Route("/auth", func(ar chi.Router) {
			ar.With(ratelimit.Middleware(deps.LoginLimiter, ratelimit.ByResolvedIP(deps.ClientIP), deps.Metrics)).
				Post("/login", deps.AuthHandler.Login)
			ar.Post("/refresh", deps.AuthHandler.Refresh)
			if deps.UserHandler != nil {
				ar.Post("/register", deps.UserHandler.Register)
			}

			ar.Group(func(pr chi.Router) {
				pr.Use(deps.AuthMiddleware.Authenticate)
				pr.Post("/logout", deps.AuthHandler.Logout)
				pr.Get("/me", deps.AuthHandler.Me)
				if deps.UserHandler != nil {
					pr.Post("/password", deps.UserHandler.ChangePassword)
				}
			})
		})

		r.Group(func(pr chi.Router) {
			pr.Use(deps.AuthMiddleware.Authenticate)

			if deps.SessionHandler != nil {
				pr.Route("/sessions", func(sr chi.Router) {
					sr.Get("/", deps.SessionHandler.ListSessions)
					sr.Post("/extend", deps.SessionHandler.ExtendCurrent)
					sr.Delete("/{sessionID}", deps.SessionHandler.RevokeSession)
				})
			}

			if deps.RBAC == nil {
				return
			}
			pr.Route("/admin", func(adm chi.Router) {
				if deps.SessionHandler != nil {
					adm.With(deps.RBAC.RequirePermissions(rbac.PermDashboardAnalytics)).
						Get("/sessions/stats", deps.SessionHandler.GetStats)
				}
				if deps.UserHandler == nil {
					return
				}
				adm.Route("/users/{id}", func(ur chi.Router) {
					ur.With(deps.RBAC.RequirePermissions(rbac.PermUserRead)).
						Get("/activity", deps.UserHandler.Activity)
					ur.With(deps.RBAC.RequirePermissions(rbac.PermUserUpdate)).
						Post("/logout", deps.UserHandler.ForceLogout)
					ur.With(deps.RBAC.RequirePermissions(rbac.PermUserUpdate)).
						Post("/activate", deps.UserHandler.Activate)
					ur.With(deps.RBAC.RequirePermissions(rbac.PermUserDelete)).
						Post("/deactivate", deps.UserHandler.Deactivate)
					ur.With(deps.RBAC.RequirePermissions(rbac.PermUserManageRoles)).
						Put("/role", deps.UserHandler.ChangeRole)
				})
			})
		})
	})
}

// openAPIDocument writes the document with plain Writes. http.ServeFile
// would go through io.ReaderFrom, which the logging wrapper asserts on the
// underlying writer.
func openAPIDocument(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(path)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(data)
		}
	}
}
