package repository

import (
	"time"

	"golang.org/x/time/rate"
)

// perMinuteLimiter allows perMinute requests per minute with a burst of one.
// A non-positive value disables the limit.
func perMinuteLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}
