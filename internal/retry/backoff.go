package retry

import "time"

// ExponentialBackoff returns delay based on attempt number.
// The delay doubles with each attempt: base * 2^attempt
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	return base * (1 << attempt)
}

// CappedBackoff is ExponentialBackoff limited to limit.
func CappedBackoff(attempt int, base, limit time.Duration) time.Duration {
	d := ExponentialBackoff(attempt, base)
	if limit > 0 && (d > limit || d <= 0) {
		return limit
	}
	return d
}
