package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WindowLimiter enforces a maximum call count per rolling window, with an
// optional minimum spacing between consecutive calls. Wait blocks until
// capacity frees; calls are never dropped.
type WindowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	calls  []time.Time // admission timestamps inside the current window

	spacing *rate.Limiter // nil when no minimum interval is configured
}

// NewWindowLimiter creates a limiter admitting at most limit calls per
// window. A positive minInterval additionally spaces consecutive calls.
func NewWindowLimiter(limit int, window, minInterval time.Duration) *WindowLimiter {
	l := &WindowLimiter{
		window: window,
		limit:  limit,
		calls:  make([]time.Time, 0, limit),
	}
	if minInterval > 0 {
		l.spacing = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return l
}

// Wait blocks until the call is admitted or ctx is done.
func (l *WindowLimiter) Wait(ctx context.Context) error {
	if l.spacing != nil {
		if err := l.spacing.Wait(ctx); err != nil {
			return err
		}
	}

	for {
		l.mu.Lock()
		now := time.Now()
		l.evict(now)

		if len(l.calls) < l.limit {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}

		// Window full: sleep until the oldest admission ages out.
		wait := l.calls[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// InFlight returns the number of admissions inside the current window.
func (l *WindowLimiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(time.Now())
	return len(l.calls)
}

// evict drops admissions older than the window. Caller holds mu.
func (l *WindowLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.calls) && !l.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}
