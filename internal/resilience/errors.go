package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrCircuitOpen is returned without touching the network while a source's
// circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// StatusError represents a non-2xx response from an upstream source.
type StatusError struct {
	StatusCode int
	Body       []byte

	// RetryAfter holds the parsed Retry-After header on 429 responses,
	// zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsRetryable returns true if the error should trigger a retry.
func (e *StatusError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
