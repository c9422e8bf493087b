// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file adapts the per-key token-bucket limiter from internal/ratelimit
// to Gin. Buckets are keyed by client IP; the webhook path can be exempted
// because Telegram delivers updates from a small set of addresses and the bot
// throttles commands per user on its own.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-nickname-bot/internal/ratelimit"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByIP keys buckets by the client IP address.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

// RateLimiter enforces per-key limits on HTTP requests.
type RateLimiter struct {
	keyFn   keyFunc
	buckets *ratelimit.Keyed
	exempt  []string
}

// NewRateLimiter constructs a RateLimiter with the given tokens-per-second
// and burst size, keyed by keyFn. Requests whose path starts with one of
// exempt are never limited.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc, exempt ...string) *RateLimiter {
	if keyFn == nil {
		keyFn = KeyByIP()
	}
	return &RateLimiter{
		keyFn:   keyFn,
		buckets: ratelimit.New(rps, burst),
		exempt:  exempt,
	}
}

func (rl *RateLimiter) isExempt(path string) bool {
	for _, p := range rl.exempt {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Handler returns a Gin middleware that enforces the limits. Over-limit
// requests get:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: 1
//	{"request_id": "<uuid>", "code": "rate_limited", "message": "rate limit exceeded"}
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.isExempt(c.Request.URL.Path) || rl.buckets.Allow(rl.keyFn(c)) {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
