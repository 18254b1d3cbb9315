package channel

import (
	"math"
	"math/rand/v2"
	"time"
)

// backoff returns the delay before reconnect attempt n (starting at 0),
// doubling from initial up to limit with +/-20% jitter.
func backoff(attempt int, initial, limit time.Duration) time.Duration {
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	if limit < initial {
		limit = initial
	}
	delay := float64(initial) * math.Pow(2, float64(attempt))
	if delay > float64(limit) {
		delay = float64(limit)
	}
	jitter := 0.2 * delay
	return time.Duration(delay + (rand.Float64()-0.5)*2*jitter)
}
