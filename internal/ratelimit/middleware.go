package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/frahmantamala/admin-dashboard/internal"
	"github.com/frahmantamala/admin-dashboard/internal/observability"
	"github.com/frahmantamala/admin-dashboard/internal/transport"
	"github.com/frahmantamala/admin-dashboard/pkg/logger"
)

// Middleware rejects callers whose key has exhausted its attempts with 429
// and a Retry-After header. Limiter errors never block a request.
func Middleware(limiter Limiter, keyFn KeyFunc, metrics *observability.Metrics) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(logger.LoggerWrapper())
	if keyFn == nil {
		keyFn = ByClientIP
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Allow(r.Context(), keyFn(r))
			if err != nil || d.Allowed {
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
				next.ServeHTTP(w, r)
				return
			}

			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			metrics.RecordRateLimited()
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			base.WriteAppError(w, r, internal.NewRateLimitedError("Too many login attempts, try again later"))
		})
	}
}
