package socketio

import "time"

// Backoff is the reconnection policy applied after an established
// connection drops.
type Backoff struct {
	// Base is the delay before the first reconnection attempt.
	Base time.Duration
	// Max caps the delay between attempts.
	Max time.Duration
	// Attempts bounds the number of reconnection attempts. Zero disables reconnection.
	Attempts int
}

// Delay returns the wait before the given zero-based attempt: Base doubled
// per attempt and capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	d := b.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
