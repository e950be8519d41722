// Package retry runs a fallible operation a bounded number of times with
// capped exponential backoff between attempts.
package retry

import (
	"context"
	"math"
	"time"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 10 * time.Second
)

// Policy bounds a retried operation. MaxRetries is the total number of
// attempts; values below one are treated as one.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// AttemptTimeout bounds each attempt when positive.
	AttemptTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// RetryHook observes a failed attempt that will be retried after delay.
type RetryHook func(attempt int, err error, delay time.Duration)

type Executor struct {
	sleep   Sleeper
	onRetry RetryHook
}

type Option func(*Executor)

func WithSleeper(s Sleeper) Option {
	return func(e *Executor) {
		if s != nil {
			e.sleep = s
		}
	}
}

func WithOnRetry(h RetryHook) Option {
	return func(e *Executor) {
		e.onRetry = h
	}
}

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{sleep: sleepContext}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Delay returns the wait after the zero-based attempt:
// min(initial * 2^attempt, max).
func (p Policy) Delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	delay := p.InitialDelay
	for i := 0; i < attempt; i++ {
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
		if delay > math.MaxInt64/2 {
			break
		}
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Budget is the longest Do can run under p: every attempt hitting
// AttemptTimeout plus every backoff wait. It is zero when AttemptTimeout is
// unset, since attempts are then unbounded.
func (p Policy) Budget() time.Duration {
	if p.AttemptTimeout <= 0 {
		return 0
	}
	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	total := time.Duration(attempts) * p.AttemptTimeout
	for attempt := 0; attempt < attempts-1; attempt++ {
		total += p.Delay(attempt)
	}
	return total
}

// Do runs fn until it succeeds or the policy is exhausted. The last error is
// returned unchanged.
func Do[T any](ctx context.Context, e *Executor, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if e == nil {
		e = NewExecutor()
	}
	attempts := p.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		res, err := runAttempt(ctx, p, fn)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		delay := p.Delay(attempt)
		if e.onRetry != nil {
			e.onRetry(attempt+1, err, delay)
		}
		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func runAttempt[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
