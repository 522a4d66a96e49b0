package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/admin-dashboard/internal/auth"
	sessionDatamodel "github.com/frahmantamala/admin-dashboard/internal/core/datamodel/session"
	userDatamodel "github.com/frahmantamala/admin-dashboard/internal/core/datamodel/user"
	"github.com/frahmantamala/admin-dashboard/internal/core/rbac"
	"github.com/frahmantamala/admin-dashboard/internal/observability"
	"github.com/frahmantamala/admin-dashboard/internal/ratelimit"
	"github.com/frahmantamala/admin-dashboard/internal/session"
	sessionPostgres "github.com/frahmantamala/admin-dashboard/internal/session/postgres"
	"github.com/frahmantamala/admin-dashboard/internal/transport/rest"
	accounts "github.com/frahmantamala/admin-dashboard/internal/user"
	userPostgres "github.com/frahmantamala/admin-dashboard/internal/user/postgres"
)

type fixedStats struct{}

func (fixedStats) Stats(ctx context.Context) (*session.Stats, error) {
	return &session.Stats{ActiveSessions: 2, ActiveUsers: 1, CreatedLast24h: 3}, nil
}

var _ = ginkgo.Describe("Router", func() {
	var (
		ctx      context.Context
		router   *chi.Mux
		accts    *accounts.Service
		metrics  *observability.Metrics
		health   *rest.HealthHandler
		mr       *miniredis.Miniredis
		rdb      *redis.Client
		limiter  ratelimit.Limiter
		database *gorm.DB
	)

	build := func() {
		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, rest.Dependencies{
			Health:         health,
			AuthHandler:    auth.NewHandler(authService(database), auth.CookieConfig{}),
			AuthMiddleware: auth.NewMiddleware(authService(database), auth.CookieConfig{}),
			RBAC:           auth.NewRBACAuthorization(nil),
			UserHandler:    accounts.NewHandler(accts, sessionManager(database)),
			SessionHandler: session.NewHandler(sessionManager(database)),
			LoginLimiter:   limiter,
			Metrics:        metrics,
			MetricsPath:    "/metrics",
			AllowedOrigins: []string{"https://dashboard.example.com"},
			OpenAPIPath:    "../../../api/openapi.yml",
		})
	}

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		var err error
		database, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		sqlDB, err := database.DB()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		gomega.Expect(database.AutoMigrate(&userDatamodel.User{}, &sessionDatamodel.Session{})).To(gomega.Succeed())

		accts = accounts.NewService(userPostgres.NewUserRepository(database), auth.NewBcryptHasher(bcrypt.MinCost), sessionPostgres.NewSessionStore(database), nil, nil)
		metrics = observability.NewMetrics(prometheus.NewRegistry())

		mr, err = miniredis.Run()
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		ginkgo.DeferCleanup(mr.Close)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		ginkgo.DeferCleanup(rdb.Close)

		health = rest.NewHealthHandler(sqlDB).WithRedis(rdb)
		limiter = ratelimit.NewRedisLimiter(rdb, "login_attempts", 3, time.Minute, nil)
		build()
	})

	do := func(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			gomega.Expect(json.NewEncoder(&buf).Encode(body)).To(gomega.Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	register := func(username string) {
		rec := do(http.MethodPost, "/api/v1/auth/register", map[string]interface{}{
			"username": username,
			"email":    username + "@example.com",
			"password": "pw123456",
		}, "")
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusCreated))
	}

	login := func(username string) auth.LoginResponse {
		rec := do(http.MethodPost, "/api/v1/auth/login", map[string]interface{}{
			"username": username,
			"password": "pw123456",
		}, "")
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		var resp auth.LoginResponse
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
		return resp
	}

	ginkgo.It("answers ping and reports healthy dependencies", func() {
		rec := do(http.MethodGet, "/api/v1/ping", nil, "")
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(rec.Header().Get("X-Request-ID")).NotTo(gomega.BeEmpty())

		rec = do(http.MethodGet, "/api/v1/health", nil, "")
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		var resp rest.HealthResponse
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
		gomega.Expect(resp.Components).To(gomega.HaveKey("postgres"))
		gomega.Expect(resp.Components).To(gomega.HaveKey("redis"))
	})

	ginkgo.It("reports unhealthy when a check fails", func() {
		health.WithCheck("amqp", func(ctx context.Context) error { return errors.New("connection refused") })
		rec := do(http.MethodGet, "/api/v1/health", nil, "")
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusServiceUnavailable))
		var resp rest.HealthResponse
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
		gomega.Expect(resp.Status).To(gomega.Equal(rest.HealthUnhealthy))
		gomega.Expect(resp.Components["amqp"].Message).To(gomega.Equal("connection refused"))
		gomega.Expect(resp.Components["postgres"].Status).To(gomega.Equal(rest.HealthHealthy))
	})

	ginkgo.It("registers, logs in and manages the caller's sessions", func() {
		register("alice")
		first := login("alice")
		second := login("alice")

		rec := do(http.MethodGet, "/api/v1/auth/me", nil, first.SessionToken)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

		rec = do(http.MethodGet, "/api/v1/sessions", nil, first.SessionToken)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		var listed struct {
			Sessions []map[string]interface{} `json:"sessions"`
		}
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &listed)).To(gomega.Succeed())
		gomega.Expect(listed.Sessions).To(gomega.HaveLen(2))

		secondID, _, ok := session.ParseToken(second.SessionToken)
		gomega.Expect(ok).To(gomega.BeTrue())
		rec = do(http.MethodDelete, "/api/v1/sessions/"+secondID, nil, first.SessionToken)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))

		rec = do(http.MethodGet, "/api/v1/auth/me", nil, second.SessionToken)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))

		rec = do(http.MethodPost, "/api/v1/sessions/extend", map[string]int{"hours": 48}, first.SessionToken)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))

		rec = do(http.MethodPost, "/api/v1/auth/logout", nil, first.SessionToken)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusNoContent))
		rec = do(http.MethodGet, "/api/v1/sessions", nil, first.SessionToken)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
	})

	ginkgo.It("guards admin routes by permission", func() {
		register("carol")
		customer := login("carol")

		rec := do(http.MethodGet, "/api/v1/admin/sessions/stats", nil, customer.AccessToken)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("dashboard_analytics"))

		carol, err := accts.GetByUserID(ctx, customer.User.UserID)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		_, err = accts.ChangeRole(ctx, carol.ID, string(rbac.RoleAdmin))
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		admin := login("carol")
		rec = do(http.MethodGet, "/api/v1/admin/sessions/stats", nil, admin.AccessToken)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(`"active_sessions":2`))

		rec = do(http.MethodPut, "/api/v1/admin/users/"+carol.UserID+"/role", map[string]string{"role": "super_admin"}, admin.AccessToken)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))

		rec = do(http.MethodGet, "/api/v1/admin/users/"+carol.UserID+"/activity", nil, admin.AccessToken)
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
	})

	ginkgo.It("rate limits login attempts per client", func() {
		for i := 0; i < 3; i++ {
			rec := do(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "nobody", "password": "pw123456"}, "")
			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		}

		rec := do(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "nobody", "password": "pw123456"}, "")
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusTooManyRequests))
		gomega.Expect(rec.Header().Get("Retry-After")).NotTo(gomega.BeEmpty())

		rec = do(http.MethodGet, "/metrics", nil, "")
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("auth_rate_limited_total 1"))
	})

	ginkgo.It("serves the OpenAPI document and answers CORS preflight", func() {
		rec := do(http.MethodGet, "/openapi.yml", nil, "")
		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(rec.Header().Get("Content-Type")).To(gomega.Equal("application/yaml"))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring("openapi:"))

		srv := httptest.NewServer(router)
		defer srv.Close()
		resp, err := http.Get(srv.URL + "/openapi.yml")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))
		gomega.Expect(string(body)).To(gomega.ContainSubstring("/auth/login"))

		req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		pre := httptest.NewRecorder()
		router.ServeHTTP(pre, req)
		gomega.Expect(pre.Code).To(gomega.Equal(http.StatusNoContent))
		gomega.Expect(pre.Header().Get("Access-Control-Allow-Origin")).To(gomega.Equal("https://dashboard.example.com"))
		gomega.Expect(pre.Header().Get("Access-Control-Allow-Credentials")).To(gomega.Equal("true"))
	})
})

func authService(db *gorm.DB) *auth.Service {
	store := sessionPostgres.NewSessionStore(db)
	return auth.NewService(auth.Deps{
		Users:        userPostgres.NewUserRepository(db),
		Sessions:     store,
		Housekeeping: sessionManager(db),
		Hasher:       auth.NewBcryptHasher(bcrypt.MinCost),
		Codec:        auth.NewJWTCodec("router-test-secret-at-least-32-chars!", "admin-dashboard", time.Hour),
	}, auth.Options{MaxConcurrent: 5})
}

func sessionManager(db *gorm.DB) *session.Manager {
	return session.NewManager(session.ManagerDeps{
		Store: sessionPostgres.NewSessionStore(db),
		Stats: fixedStats{},
	}, session.Options{})
}
