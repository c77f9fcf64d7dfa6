// Package bot wires the Telegram transport to the relay, topic, and history
// services.
//
// This file adapts the shared per-key token-bucket limiter to Telegram user
// ids, for abuse control and inference cost protection in a single-process
// deployment.
package bot

import (
	"strconv"

	"github.com/averbier/go-topic-bot/internal/ratelimit"
)

// userLimiter throttles inbound messages per Telegram user.
type userLimiter struct {
	buckets *ratelimit.PerKey
}

// newUserLimiter constructs a userLimiter with the given tokens-per-second
// and burst size. burst values <= 0 are coerced to 1.
func newUserLimiter(rps float64, burst int) *userLimiter {
	return &userLimiter{buckets: ratelimit.NewPerKey(rps, burst)}
}

// Allow reports whether the user may submit another message now.
func (ul *userLimiter) Allow(userID int64) bool {
	return ul.buckets.Allow(strconv.FormatInt(userID, 10))
}
