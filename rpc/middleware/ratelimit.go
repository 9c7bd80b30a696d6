package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const visitorIdleTTL = 5 * time.Minute

type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

type rateEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles callers per client address. Forwarding headers are
// honoured only when the direct peer is a trusted proxy.
type RateLimiter struct {
	logger   *slog.Logger
	limit    RateLimit
	trusted  map[string]struct{}
	mu       sync.Mutex
	visitors map[string]*rateEntry
	clockNow func() time.Time
}

func NewRateLimiter(limit RateLimit, trustedProxies []string, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	trusted := make(map[string]struct{}, len(trustedProxies))
	for _, proxy := range trustedProxies {
		if ip := net.ParseIP(strings.TrimSpace(proxy)); ip != nil {
			trusted[ip.String()] = struct{}{}
		}
	}
	return &RateLimiter{
		logger:   logger,
		limit:    limit,
		trusted:  trusted,
		visitors: make(map[string]*rateEntry),
		clockNow: time.Now,
	}
}

func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.limit.RequestsPerMinute <= 0 {
			next.ServeHTTP(w, req)
			return
		}
		identifier := r.clientID(req)
		if !r.obtainLimiter(identifier).AllowN(r.clockNow(), 1) {
			r.logger.Warn("rate limit exceeded", slog.String("client", identifier), slog.String("path", req.URL.Path))
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (r *RateLimiter) obtainLimiter(id string) *rate.Limiter {
	now := r.clockNow()
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.visitors {
		if now.Sub(entry.lastSeen) > visitorIdleTTL {
			delete(r.visitors, key)
		}
	}
	if entry, ok := r.visitors[id]; ok {
		entry.lastSeen = now
		return entry.limiter
	}
	perSecond := r.limit.RequestsPerMinute / 60.0
	burst := r.limit.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	r.visitors[id] = &rateEntry{limiter: limiter, lastSeen: now}
	return limiter
}

func (r *RateLimiter) clientID(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if _, ok := r.trusted[host]; !ok {
		return host
	}
	if ip := strings.TrimSpace(req.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if parsed := net.ParseIP(first); parsed != nil {
			return parsed.String()
		}
	}
	return host
}
