package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"wager-core/internal/monitor"
	"wager-core/pkg/logger"
)

// ipLimiters hands out one token bucket per client IP and forgets idle ones.
type ipLimiters struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	idle    time.Duration
	entries map[string]*limiterEntry
	swept   time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiters(rps float64, burst int) *ipLimiters {
	return &ipLimiters{
		rps:     rate.Limit(rps),
		burst:   burst,
		idle:    5 * time.Minute,
		entries: make(map[string]*limiterEntry),
		swept:   time.Now(),
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.swept) > l.idle {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > l.idle {
				delete(l.entries, k)
			}
		}
		l.swept = now
	}

	e, ok := l.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

// CORSMiddleware handles Cross-Origin Resource Sharing
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware adds unique request ID for tracking
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("RequestID", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// RateLimitMiddleware rejects clients exceeding rps (with burst) per IP.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiters := newIPLimiters(rps, burst)
	log := logger.WithComponent("api")
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiters.get(ip).Allow() {
			log.WithFields(logger.Fields{"ip": ip}).Warn("rate limit exceeded")
			respondError(c, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, please slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}

// TimeoutMiddleware bounds the request context. Handlers observe the
// deadline through c.Request.Context().
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.IsWebsocket() {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			respondError(c, http.StatusRequestTimeout, "TIMEOUT", "request took too long to process")
		}
	}
}

// RequestLogger logs all API requests with timing and status and records
// API metrics when metrics is non-nil.
func RequestLogger(metrics *monitor.SystemMetrics) gin.HandlerFunc {
	log := logger.WithComponent("api")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		if metrics != nil {
			metrics.IncrementAPI()
			metrics.APILatency.RecordDuration(latency)
			if status >= http.StatusBadRequest {
				metrics.IncrementAPIErrors()
			}
		}

		entry := log.WithFields(logger.Fields{
			"request_id": c.GetString("RequestID"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": float64(latency.Microseconds()) / 1000,
			"client_ip":  c.ClientIP(),
		})
		if status >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Debug("request")
		}
	}
}
