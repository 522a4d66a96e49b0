package ratelimit

import (
	"context"
	"net/http"
	"time"

	"github.com/frahmantamala/admin-dashboard/internal/transport"
)

// Decision is the outcome of one attempt against a key.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type KeyFunc func(r *http.Request) string

// ByClientIP keys attempts by the direct peer address. Forwarding headers
// are ignored.
func ByClientIP(r *http.Request) string {
	return "ip:" + transport.ClientIP(r)
}

// ByResolvedIP keys attempts by the client address seen through trusted
// proxies. A nil resolver behaves like ByClientIP.
func ByResolvedIP(res *transport.ClientIPResolver) KeyFunc {
	if res == nil {
		return ByClientIP
	}
	return func(r *http.Request) string {
		return "ip:" + res.IP(r)
	}
}
