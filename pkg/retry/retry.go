// Package retry re-runs idempotent calls with exponential backoff.
//
// The API client uses it for list fetches and the notification client for
// reconnects. Submissions and access checks are never retried: each user
// action issues exactly one request.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// ErrExhausted is joined with the last error once every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy configures a retry loop.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	// Zero or negative means a single call.
	Attempts int

	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	// Jitter randomizes each delay by up to this fraction (0-1).
	Jitter float64

	// OnRetry is called before sleeping.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns the policy used for list fetches.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Initial:    200 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
		Jitter:     0.1,
	}
}

// Forever returns a policy for reconnect loops; it stops only when the
// context ends or the call returns a permanent error.
func Forever() Policy {
	p := DefaultPolicy()
	p.Attempts = math.MaxInt
	p.Max = 30 * time.Second
	return p
}

// Delay returns the pause before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.Initial) * math.Pow(mult, float64(attempt))
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	if p.Jitter > 0 {
		j := d * p.Jitter
		d = d - j + rand.Float64()*2*j
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, returns a permanent error, attempts run
// out, or ctx is done.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Value is Do for calls that produce a result.
func Value[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(p.Attempts, 1)

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		last = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
	return zero, errors.Join(ErrExhausted, last)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Do stops immediately and returns err unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}
