package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"volley-club/internal/config"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client API limiter
type RateLimitConfig struct {
	RequestsPerSecond float64       // sustained requests per client IP
	Burst             int           // bucket size
	CleanupInterval   time.Duration // idle clients are forgotten after twice this
}

// DefaultRateLimitConfig matches the server defaults
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 20,
	Burst:             40,
	CleanupInterval:   5 * time.Minute,
}

// RateLimitConfigFor derives the limiter settings from the server config
func RateLimitConfigFor(cfg config.ServerConfig) RateLimitConfig {
	out := DefaultRateLimitConfig
	if cfg.RateLimit > 0 {
		out.RequestsPerSecond = cfg.RateLimit
	}
	if cfg.RateBurst > 0 {
		out.Burst = cfg.RateBurst
	}
	return out
}

// LimiterStats counts limiter decisions
type LimiterStats struct {
	Allowed  uint64 `json:"allowed"`
	Rejected uint64 `json:"rejected"`
	Clients  int    `json:"clients"`
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// IPRateLimiter keeps one token bucket per client IP
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	cfg      RateLimitConfig

	allowed  atomic.Uint64
	rejected atomic.Uint64

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter creates the limiter and starts its idle sweep
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}
	rl := &IPRateLimiter{
		visitors: make(map[string]*visitor),
		cfg:      cfg,
		stopChan: make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the idle sweep
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// Allow spends one token from ip's bucket
func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)}
		rl.visitors[ip] = v
	}
	v.seen = time.Now()
	rl.mu.Unlock()

	if v.limiter.Allow() {
		rl.allowed.Add(1)
		return true
	}
	rl.rejected.Add(1)
	return false
}

// Middleware rejects over-limit clients with 429 and a Retry-After hint
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := "1"
	if rl.cfg.RequestsPerSecond > 0 && rl.cfg.RequestsPerSecond < 1 {
		retryAfter = strconv.Itoa(int(math.Ceil(1 / rl.cfg.RequestsPerSecond)))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(GetClientIP(r)) {
			RecordConnectionRejected("rate_limit")
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stats returns the decision counters and the number of tracked clients
func (rl *IPRateLimiter) Stats() LimiterStats {
	rl.mu.Lock()
	clients := len(rl.visitors)
	rl.mu.Unlock()
	return LimiterStats{
		Allowed:  rl.allowed.Load(),
		Rejected: rl.rejected.Load(),
		Clients:  clients,
	}
}

func (rl *IPRateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopChan:
			return
		case now := <-ticker.C:
			rl.sweep(now.Add(-2 * rl.cfg.CleanupInterval))
		}
	}
}

// sweep forgets clients not seen since cutoff
func (rl *IPRateLimiter) sweep(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if v.seen.Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}

// GetClientIP returns the caller's address. The first X-Forwarded-For hop
// and X-Real-IP are honored only when they parse as an IP; both can be
// spoofed unless a trusted proxy sets them.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WebSocketRateLimiter caps concurrent spectator sockets per IP
type WebSocketRateLimiter struct {
	mu       sync.Mutex
	open     map[string]int
	maxPerIP int
	rejected atomic.Uint64
}

// NewWebSocketRateLimiter creates a limiter allowing maxPerIP sockets per IP
func NewWebSocketRateLimiter(maxPerIP int) *WebSocketRateLimiter {
	return &WebSocketRateLimiter{open: make(map[string]int), maxPerIP: maxPerIP}
}

// Allow reserves a socket slot for ip
func (wl *WebSocketRateLimiter) Allow(ip string) bool {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	if wl.open[ip] >= wl.maxPerIP {
		wl.rejected.Add(1)
		return false
	}
	wl.open[ip]++
	return true
}

// Release frees a slot taken by Allow
func (wl *WebSocketRateLimiter) Release(ip string) {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	switch n := wl.open[ip]; {
	case n > 1:
		wl.open[ip] = n - 1
	case n == 1:
		delete(wl.open, ip)
	}
}

// Open returns the sockets currently held by ip
func (wl *WebSocketRateLimiter) Open(ip string) int {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	return wl.open[ip]
}

// Rejected returns how many sockets were refused
func (wl *WebSocketRateLimiter) Rejected() uint64 {
	return wl.rejected.Load()
}

// DefaultAllowedOrigins is used when no origin list is configured
var DefaultAllowedOrigins = []string{
	"http://localhost:*",
	"http://127.0.0.1:*",
}

// OriginChecker matches request origins against an allow list. Entries may
// be "*" or end in ":*" to accept any port.
type OriginChecker struct {
	allowed []string
}

// NewOriginChecker creates a checker; nil uses DefaultAllowedOrigins
func NewOriginChecker(allowed []string) *OriginChecker {
	if allowed == nil {
		allowed = DefaultAllowedOrigins
	}
	return &OriginChecker{allowed: allowed}
}

// IsAllowed checks if an origin is in the allowed list
func (oc *OriginChecker) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range oc.allowed {
		switch {
		case a == "*":
			return true
		case strings.HasSuffix(a, ":*"):
			prefix := strings.TrimSuffix(a, "*")
			if origin == strings.TrimSuffix(prefix, ":") || strings.HasPrefix(origin, prefix) {
				return true
			}
		case origin == a:
			return true
		}
	}
	return false
}
