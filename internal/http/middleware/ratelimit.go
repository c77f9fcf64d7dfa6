// Package middleware contains shared Gin middleware used by the ops HTTP
// layer.
//
// This file adapts the shared per-key token-bucket limiter to HTTP requests,
// keyed by a caller-selected identity (typically the client IP).
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/averbier/go-topic-bot/internal/ratelimit"
)

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByIP keys buckets by the client IP address.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

// RateLimiter enforces per-key token-bucket limits on HTTP requests.
type RateLimiter struct {
	keyFn   keyFunc
	buckets *ratelimit.PerKey
}

// NewRateLimiter constructs a RateLimiter with the given tokens-per-second
// and burst size, keyed by keyFn. burst values <= 0 are coerced to 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	return &RateLimiter{
		keyFn:   keyFn,
		buckets: ratelimit.NewPerKey(rps, burst),
	}
}

// Handler returns a Gin middleware that enforces the limit. Rejected
// requests receive a 429 with a compact JSON body and a minimal Retry-After
// header.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.buckets.Allow(rl.keyFn(c)) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "too_many_requests",
				"message": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
