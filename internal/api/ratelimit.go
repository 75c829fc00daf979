package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	sweepInterval = time.Minute
	staleAfter    = 3 * time.Minute
)

type rlClient struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter applies a per-IP token bucket. It guards the auth-ish
// endpoints (refresh-adjacent and password reset) against hammering. Stale
// entries are swept lazily on the next allow, so the limiter owns no
// goroutine.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*rlClient
	r         rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*rlClient),
		r:       rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		for k, c := range rl.clients {
			if now.Sub(c.seen) > staleAfter {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	c, ok := rl.clients[ip]
	if !ok {
		c = &rlClient{lim: rate.NewLimiter(rl.r, rl.burst)}
		rl.clients[ip] = c
	}
	c.seen = now
	return c.lim.Allow()
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !rl.allow(ip) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
