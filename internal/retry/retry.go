// Package retry is the bounded retry combinator shared by capture, apply and
// the sync cycle. Policies are plain values built on cenkalti/backoff and are
// always cancelable through the context passed to Do.
package retry

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Policy bounds a retry loop.
//
// Retries counts the attempts after the first one, so a policy with Retries 2
// runs fn at most three times. When MaxDelay is greater than Delay the wait
// grows exponentially from Delay up to MaxDelay; otherwise it is fixed.
type Policy struct {
	Retries  int
	Delay    time.Duration
	MaxDelay time.Duration
}

// Fixed returns a policy with a constant delay between attempts.
func Fixed(retries int, delay time.Duration) Policy {
	return Policy{Retries: retries, Delay: delay}
}

// Exponential returns a policy whose delay doubles from initial up to limit.
func Exponential(retries int, initial, limit time.Duration) Policy {
	return Policy{Retries: retries, Delay: initial, MaxDelay: limit}
}

// Attempts returns the maximum number of times Do calls fn.
func (p Policy) Attempts() int { return max(p.Retries, 0) + 1 }

// Permanent wraps err so that Do stops immediately and returns err unwrapped.
func Permanent(err error) error { return backoff.Permanent(err) }

// Notify is called after a failed attempt, before waiting for the next one.
type Notify func(attempt int, err error, wait time.Duration)

// Do calls fn until it succeeds, returns a Permanent error, the policy is
// exhausted or ctx is done. fn receives the 1-based attempt number. The last
// error from fn is returned; ctx.Err() is returned when ctx ends the loop.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error, onRetry Notify) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	attempt := 0
	op := func() error {
		attempt++
		return fn(attempt)
	}
	var n backoff.Notify
	if onRetry != nil {
		n = func(err error, wait time.Duration) { onRetry(attempt, err, wait) }
	}
	return backoff.RetryNotify(op, backoff.WithContext(p.backOff(), ctx), n)
}

func (p Policy) backOff() backoff.BackOff {
	var b backoff.BackOff
	if p.MaxDelay > p.Delay {
		e := backoff.NewExponentialBackOff()
		e.InitialInterval = p.Delay
		e.MaxInterval = p.MaxDelay
		e.MaxElapsedTime = 0
		e.Reset()
		b = e
	} else {
		b = backoff.NewConstantBackOff(p.Delay)
	}
	return backoff.WithMaxRetries(b, uint64(max(p.Retries, 0)))
}
