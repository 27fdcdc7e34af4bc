package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"compass-auth/pkg/apierror"
)

const (
	limiterSweepThreshold = 1000
	limiterIdleTTL        = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies a per-client token bucket. A non-positive
// requests-per-minute value disables it.
type RateLimitMiddleware struct {
	rpm     int
	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

func NewRateLimitMiddleware(rpm int) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rpm:     rpm,
		clients: map[string]*clientLimiter{},
		now:     time.Now,
	}
}

func (m *RateLimitMiddleware) Enabled() bool {
	return m.rpm > 0
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	if !m.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.getLimiter(ClientIP(r)).AllowN(m.now(), 1) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, http.StatusTooManyRequests, apierror.CodeRateLimited, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) getLimiter(clientIP string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if client, exists := m.clients[clientIP]; exists {
		client.lastSeen = now
		return client.limiter
	}

	m.sweepLocked(now)
	created := &clientLimiter{
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.rpm)), m.rpm),
		lastSeen: now,
	}
	m.clients[clientIP] = created
	return created.limiter
}

func (m *RateLimitMiddleware) sweepLocked(now time.Time) {
	if len(m.clients) < limiterSweepThreshold {
		return
	}

	cutoff := now.Add(-limiterIdleTTL)
	for ip, client := range m.clients {
		if client.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

// ClientIP returns the host part of the connection's remote address.
// Forwarding headers are honoured only when the router runs chi's RealIP
// ahead of this, which rewrites RemoteAddr for trusted proxy deployments.
func ClientIP(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote == "" {
		return "unknown"
	}
	return remote
}
