package middleware_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	chiMiddleware "github.com/go-chi/chi/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/admin-dashboard/internal/transport/middleware"
	"github.com/frahmantamala/admin-dashboard/pkg/logger"
)

var _ = Describe("LoggingMiddleware", func() {
	It("filters credentials out of headers and body", func() {
		var buf bytes.Buffer
		lg := logger.New(&buf, "production")

		var seenBody string
		handler := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			seenBody = string(data)
			w.WriteHeader(http.StatusUnauthorized)
		}))

		payload := `{"username":"ops","password":"hunter22","nested":{"refresh_token":"abc.def"}}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(payload))
		req.Header.Set("Authorization", "Bearer very-secret")
		req.Header.Set("Cookie", "session_token=abc.def")
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		Expect(seenBody).To(Equal(payload))
		out := buf.String()
		Expect(out).To(ContainSubstring(`"status_code":401`))
		Expect(out).To(ContainSubstring(`"level":"WARN"`))
		Expect(out).To(ContainSubstring("ops"))
		Expect(out).To(ContainSubstring("[FILTERED]"))
		Expect(out).NotTo(ContainSubstring("hunter22"))
		Expect(out).NotTo(ContainSubstring("very-secret"))
		Expect(out).NotTo(ContainSubstring("abc.def"))
	})

	It("does not log non-JSON bodies verbatim", func() {
		var buf bytes.Buffer
		lg := logger.New(&buf, "production")
		handler := middleware.LoggingMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("password=hunter22"))
		handler.ServeHTTP(httptest.NewRecorder(), req)

		Expect(buf.String()).To(ContainSubstring("[NON-JSON BODY]"))
		Expect(buf.String()).NotTo(ContainSubstring("hunter22"))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("answers 500 without leaking the panic value", func() {
		var buf bytes.Buffer
		lg := logger.New(&buf, "production")
		handler := middleware.RecoveryMiddleware(lg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("db password is hunter22")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(ContainSubstring("Internal server error"))
		Expect(rec.Body.String()).NotTo(ContainSubstring("hunter22"))
		Expect(buf.String()).To(ContainSubstring("panic recovered"))
	})
})

var _ = Describe("RequestID", func() {
	var captured string
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = chiMiddleware.GetReqID(r.Context())
		Expect(logger.RequestID(r.Context())).To(Equal(captured))
	}))

	It("keeps a caller-supplied id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(captured).To(Equal("req-123"))
		Expect(rec.Header().Get(middleware.RequestIDHeader)).To(Equal("req-123"))
	})

	It("mints an id when the supplied one is oversized", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.RequestIDHeader, strings.Repeat("x", 200))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(captured).To(HaveLen(36))
		Expect(rec.Header().Get(middleware.RequestIDHeader)).To(Equal(captured))
	})
})

var _ = Describe("CORS", func() {
	handler := middleware.CORS([]string{"https://dash.example.com/"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	It("echoes an allowed origin with credentials", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://dash.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://dash.example.com"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
	})

	It("ignores other origins", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})
