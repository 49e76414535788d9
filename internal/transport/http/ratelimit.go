package http

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter caps inbound messages of one connection at limit per minute,
// allowing a burst of up to limit.
type rateLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		return &rateLimiter{}
	}
	return &rateLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(limit)), limit),
		now:     time.Now,
	}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limiter == nil {
		return true
	}
	return r.limiter.AllowN(r.now(), 1)
}
