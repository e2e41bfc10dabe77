package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements a per-client token bucket rate limiter
// Authenticated requests are keyed by user id, anonymous ones by client IP
type RateLimiter struct {
	clients map[string]*clientLimit
	rps     rate.Limit
	burst   int
	idle    time.Duration
	mu      sync.Mutex
}

type clientLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
// rps: sustained requests per second per client
// burst: requests allowed in a single burst
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimit),
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    3 * time.Minute,
	}

	go rl.cleanup()

	return rl
}

// Middleware returns a rate limiting middleware
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := getClientIP(r)
		if userID := GetUserID(r); userID != nil {
			clientID = "user:" + userID.String()
		}

		if !rl.allow(clientID) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow checks if a client is allowed to make a request
func (rl *RateLimiter) allow(clientID string) bool {
	rl.mu.Lock()
	client, exists := rl.clients[clientID]
	if !exists {
		client = &clientLimit{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[clientID] = client
	}
	client.lastSeen = time.Now()
	rl.mu.Unlock()

	return client.limiter.Allow()
}

// cleanup removes idle client entries periodically
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		cutoff := time.Now().Add(-rl.idle)
		for clientID, client := range rl.clients {
			if client.lastSeen.Before(cutoff) {
				delete(rl.clients, clientID)
			}
		}
		rl.mu.Unlock()
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// First hop of X-Forwarded-For when behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
