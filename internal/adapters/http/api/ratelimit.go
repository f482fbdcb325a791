package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Per-endpoint request budgets, per client address. The streaming
// endpoints are the expensive ones: every admitted request drives
// browser-agent extractions. The concurrency gate caps simultaneous
// streams; these budgets cap request churn.
const (
	SearchRatePerMinute   = 10
	CompareRatePerMinute  = 5
	StandardRatePerMinute = 30

	limiterIdleTTL = 10 * time.Minute
)

// RateLimiter tracks one token bucket per client address.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	clients   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter grants perMinute requests per client address, with a
// burst of the same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		clients:   make(map[string]*clientBucket),
		lastSweep: time.Now(),
	}
}

// Allow reports whether the client still has budget. Idle clients are
// swept so the map does not grow unbounded.
func (l *RateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for addr, b := range l.clients {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(l.clients, addr)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.clients[client]
	if !ok {
		b = &clientBucket{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.perMinute),
		}
		l.clients[client] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// Limit rejects over-budget clients with 429 before the handler runs.
func (l *RateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !l.Allow(host) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "Too many requests. Please slow down.")
			return
		}
		next(w, r)
	}
}
