package session

import (
	"sync"
	"time"
)

// UnauthorizedWindow counts 401 responses seen within a sliding window.
// A 401 arriving more than the window length after the previous one restarts the count at 1.
type UnauthorizedWindow struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	now       func() time.Time

	count int
	last  time.Time
}

// NewUnauthorizedWindow creates a window of the given length that trips at threshold.
func NewUnauthorizedWindow(window time.Duration, threshold int, now func() time.Time) *UnauthorizedWindow {
	if now == nil {
		now = time.Now
	}
	return &UnauthorizedWindow{window: window, threshold: threshold, now: now}
}

// Record registers a 401 and reports whether the threshold has been reached.
func (w *UnauthorizedWindow) Record() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if w.last.IsZero() || now.Sub(w.last) > w.window {
		w.count = 1
	} else {
		w.count++
	}
	w.last = now

	return w.count >= w.threshold
}

// Count returns the number of 401s in the current window run.
func (w *UnauthorizedWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Reset forgets every recorded 401.
func (w *UnauthorizedWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count = 0
	w.last = time.Time{}
}
