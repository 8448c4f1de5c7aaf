package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Config holds the resilience envelope for one source.
type Config struct {
	RateLimit   int           // max calls per RateWindow
	RateWindow  time.Duration // rolling window width
	MinInterval time.Duration // optional spacing between calls, 0 = none

	FailureThreshold int           // consecutive failures before opening
	RecoveryTimeout  time.Duration // open -> half-open delay
	HalfOpenProbes   int           // probes admitted while half-open

	MaxRetries    int           // retries after the first attempt
	BackoffFactor float64       // exponential backoff base
	Timeout       time.Duration // per-attempt deadline
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RateLimit:        100,
		RateWindow:       10 * time.Second,
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenProbes:   1,
		MaxRetries:       3,
		BackoffFactor:    2.0,
		Timeout:          30 * time.Second,
	}
}

// maxBackoff caps exponential backoff sleeps.
const maxBackoff = 60 * time.Second

// Executor wraps calls to one external source with rate limiting, circuit
// breaking, retry with backoff, and a per-attempt deadline. Source adapters
// keep only data-shape logic.
type Executor struct {
	name    string
	cfg     Config
	limiter *WindowLimiter
	breaker *Breaker
	logger  *slog.Logger
}

// NewExecutor creates an Executor for the named source.
func NewExecutor(name string, cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		name:    name,
		cfg:     cfg,
		limiter: NewWindowLimiter(cfg.RateLimit, cfg.RateWindow, cfg.MinInterval),
		breaker: NewBreaker(cfg.FailureThreshold, cfg.RecoveryTimeout, cfg.HalfOpenProbes),
		logger:  logger,
	}
}

// Name returns the source name this executor guards.
func (e *Executor) Name() string { return e.name }

// CircuitOpen reports whether the breaker currently rejects calls.
func (e *Executor) CircuitOpen() bool { return e.breaker.State() == StateOpen }

// Do runs fn under the resilience envelope. fn receives a context carrying
// the per-attempt deadline. Retries stop at MaxRetries; the last error is
// surfaced to the caller.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := e.backoff(attempt, lastErr)
			e.logger.Debug("retrying call",
				"source", e.name,
				"attempt", attempt,
				"backoff", wait,
			)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		if err := e.breaker.Allow(); err != nil {
			return fmt.Errorf("%s: %w", e.name, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			e.breaker.RecordSuccess()
			return nil
		}

		if ctx.Err() != nil {
			// Caller cancelled; not an upstream failure.
			return ctx.Err()
		}

		// Timeouts and upstream errors both count against the breaker.
		e.breaker.RecordFailure()
		lastErr = err

		if !retryable(err) {
			return err
		}
	}

	return fmt.Errorf("%s: max retries exceeded: %w", e.name, lastErr)
}

// backoff computes the sleep before the given attempt. A Retry-After from a
// 429 response takes precedence; otherwise exponential backoff capped at
// maxBackoff.
func (e *Executor) backoff(attempt int, lastErr error) time.Duration {
	var statusErr *StatusError
	if errors.As(lastErr, &statusErr) && statusErr.RetryAfter > 0 {
		if statusErr.RetryAfter > maxBackoff {
			return maxBackoff
		}
		return statusErr.RetryAfter
	}

	d := time.Duration(math.Pow(e.cfg.BackoffFactor, float64(attempt)) * float64(time.Second))
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// retryable reports whether the error is transient: 429/5xx upstream
// statuses, per-attempt timeouts, and network-level failures.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	// Connection resets, DNS failures and other transport errors.
	return true
}
