package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"syscall"
	"time"
)

// RetryPolicy controls exponential backoff between attempts.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first. Default: 2.
	Attempts int
	// Backoff is the delay before the first retry. Default: 100ms.
	Backoff time.Duration
	// MaxBackoff caps a single delay. Default: 2s.
	MaxBackoff time.Duration
	// Jitter is the ± fraction applied to each delay. Default: 0.2.
	Jitter float64
}

// DefaultRetryPolicy returns the policy used for collaborator calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:   2,
		Backoff:    100 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
		Jitter:     0.2,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Backoff <= 0 {
		p.Backoff = d.Backoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// delay returns the wait before retry number n (0-based).
func (p RetryPolicy) delay(n int) time.Duration {
	d := float64(p.Backoff) * math.Pow(2, float64(n))
	d = math.Min(d, float64(p.MaxBackoff))
	if p.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * p.Jitter
	}
	return time.Duration(math.Max(d, 0))
}

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so IsTransient reports true.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is worth retrying: explicit transient
// errors, per-attempt deadlines, network timeouts and connection resets.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED)
}
