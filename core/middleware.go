package core

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter limits the number of requests per client and minute
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*Client
	limit    int
	window   time.Duration
	cleanupC chan struct{}
}

type Client struct {
	requests []time.Time
	blocked  time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		clients:  make(map[string]*Client),
		limit:    requestsPerMinute,
		window:   time.Minute,
		cleanupC: make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Middleware returns a Gin middleware function
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
			})
			return
		}

		c.Next()
	}
}

// Allow checks if a request should be allowed
func (rl *RateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	RecordRateLimitHit()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists {
		client = &Client{}
		rl.clients[clientIP] = client
	}

	if now.Before(client.blocked) {
		RecordRateLimitBlock()
		return false
	}

	// drop requests outside the window
	cutoff := now.Add(-rl.window)
	kept := client.requests[:0]
	for _, t := range client.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	client.requests = kept

	if len(client.requests) >= rl.limit {
		client.blocked = now.Add(rl.window)
		RecordRateLimitBlock()
		return false
	}

	client.requests = append(client.requests, now)
	return true
}

// cleanup removes idle clients
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-rl.window * 2)
			for ip, client := range rl.clients {
				if n := len(client.requests); n == 0 || client.requests[n-1].Before(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.cleanupC:
			return
		}
	}
}

// Stop stops the rate limiter cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.cleanupC)
}

// RequestLogger logs one structured line per request
func RequestLogger(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Int("size", c.Writer.Size()).
			Str("client", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// SecurityHeadersMiddleware adds security headers to responses. Google Tag
// Manager is allowed as a script source when gtm is set.
func SecurityHeadersMiddleware(gtm bool) gin.HandlerFunc {
	scripts := "'self' 'unsafe-inline'"
	if gtm {
		scripts += " https://www.googletagmanager.com"
	}
	csp := "default-src 'self'; script-src " + scripts + "; style-src 'self' 'unsafe-inline'"

	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", csp)

		c.Next()
	}
}
