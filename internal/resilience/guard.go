package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single collaborator attempt.
const DefaultTimeout = 2 * time.Second

// GuardConfig configures a Guard.
type GuardConfig struct {
	Name    string
	Timeout time.Duration
	Retry   RetryPolicy
	Breaker BreakerConfig
}

// Guard runs collaborator calls with a per-attempt timeout, retries on
// transient errors and a circuit breaker shared across calls.
type Guard struct {
	name    string
	timeout time.Duration
	retry   RetryPolicy
	breaker *Breaker
}

// NewGuard creates a Guard for the named collaborator.
func NewGuard(cfg GuardConfig) *Guard {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "collaborator"
	}
	name := cfg.Name
	onChange := cfg.Breaker.OnStateChange
	cfg.Breaker.OnStateChange = func(from, to BreakerState) {
		zap.L().Info("resilience: breaker state change",
			zap.String("collaborator", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		if onChange != nil {
			onChange(from, to)
		}
	}
	return &Guard{
		name:    name,
		timeout: cfg.Timeout,
		retry:   cfg.Retry.withDefaults(),
		breaker: NewBreaker(cfg.Breaker),
	}
}

// Name returns the collaborator name.
func (g *Guard) Name() string { return g.name }

// Timeout returns the per-attempt timeout.
func (g *Guard) Timeout() time.Duration { return g.timeout }

// Breaker exposes the guard's breaker for inspection.
func (g *Guard) Breaker() *Breaker { return g.breaker }

// Call runs fn under g. A nil guard runs fn once with DefaultTimeout.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if g == nil {
		return attempt(ctx, DefaultTimeout, fn)
	}

	var lastErr error
	for try := 0; try < g.retry.Attempts; try++ {
		if err := g.breaker.Allow(); err != nil {
			return zero, eris.Wrapf(err, "resilience: %s", g.name)
		}

		val, err := attempt(ctx, g.timeout, fn)
		g.breaker.Record(err)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) || try == g.retry.Attempts-1 {
			break
		}

		zap.L().Warn("resilience: retrying collaborator",
			zap.String("collaborator", g.name),
			zap.Int("attempt", try+1),
			zap.Error(err),
		)
		timer := time.NewTimer(g.retry.delay(try))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, eris.Wrapf(lastErr, "resilience: %s", g.name)
		case <-timer.C:
		}
	}
	return zero, eris.Wrapf(lastErr, "resilience: %s", g.name)
}

// attempt runs fn once under the per-attempt timeout. fn runs in its own
// goroutine so a collaborator that ignores its context still cannot hold the
// caller past the deadline.
func attempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		val, err := fn(actx)
		done <- result{val: val, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-actx.Done():
		var zero T
		return zero, actx.Err()
	}
}
