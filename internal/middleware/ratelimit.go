package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/darkden-lab/orderflow/internal/httputil"
)

const (
	limiterIdle  = 3 * time.Minute
	limiterSweep = time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// buckets keeps one token bucket per client address. Buckets idle for
// limiterIdle are swept.
type buckets struct {
	m     sync.Map
	rps   rate.Limit
	burst int
}

func newBuckets(rps float64, burst int) *buckets {
	b := &buckets{rps: rate.Limit(rps), burst: burst}
	go b.sweep()
	return b
}

func (b *buckets) allow(key string, now time.Time) bool {
	v, ok := b.m.Load(key)
	if !ok {
		fresh := &bucket{limiter: rate.NewLimiter(b.rps, b.burst)}
		v, _ = b.m.LoadOrStore(key, fresh)
	}
	bk := v.(*bucket)
	bk.lastSeen.Store(now.UnixNano())
	return bk.limiter.AllowN(now, 1)
}

func (b *buckets) sweep() {
	ticker := time.NewTicker(limiterSweep)
	defer ticker.Stop()

	for now := range ticker.C {
		cutoff := now.Add(-limiterIdle).UnixNano()
		b.m.Range(func(key, value any) bool {
			if value.(*bucket).lastSeen.Load() < cutoff {
				b.m.Delete(key)
			}
			return true
		})
	}
}

// clientIP extracts the client IP address from the request, checking
// X-Forwarded-For first, then falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// RateLimitMiddleware enforces a per-IP token bucket. A stream counts once,
// when it connects, so a reconnect storm is limited like any other burst of
// requests.
func RateLimitMiddleware(rps float64, burst int) mux.MiddlewareFunc {
	if rps <= 0 {
		rps = 100
	}
	if burst <= 0 {
		burst = 200
	}
	limits := newBuckets(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limits.allow(clientIP(r), time.Now()) {
				w.Header().Set("Retry-After", "1")
				httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
