// Package retry is the one bounded retry primitive used across the
// acquisition engine: a fixed number of attempts separated by a fixed
// delay, cut short by context cancellation.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	Attempts int
	Delay    time.Duration
}

var (
	SessionRestore = Policy{Attempts: 3, Delay: 3 * time.Second}
	LoginSubmit    = Policy{Attempts: 3, Delay: 2 * time.Second}
	LoginVerify    = Policy{Attempts: 2, Delay: 5 * time.Second}
	APITransient   = Policy{Attempts: 2, Delay: time.Second}
)

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}

// Permanent marks err so that Do returns it immediately without using
// the remaining attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs fn until it succeeds, returns a Permanent error, or the policy
// is exhausted. The last error is returned, or ctx.Err() when the
// context ended first.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	return backoff.Retry(func() error {
		return fn(ctx)
	}, p.backoff(ctx))
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	return backoff.RetryWithData(func() (T, error) {
		return fn(ctx)
	}, p.backoff(ctx))
}
