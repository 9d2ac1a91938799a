// Package retry applies an explicit retry policy at the call site of a remote
// operation.
package retry

import (
	"context"
	"time"

	"github.com/arencloud/courtside/internal/logging"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	// MaxInterval caps the exponential growth; zero keeps InitialInterval fixed.
	MaxInterval time.Duration
	// Retryable decides whether a failed attempt is tried again; nil retries everything.
	Retryable func(error) bool
}

// Fixed returns a policy that waits the same delay between attempts.
func Fixed(attempts int, delay time.Duration, retryable func(error) bool) Policy {
	return Policy{MaxAttempts: attempts, InitialInterval: delay, Retryable: retryable}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	if p.MaxInterval <= p.InitialInterval {
		b = backoff.NewConstantBackOff(p.InitialInterval)
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.InitialInterval
		eb.MaxInterval = p.MaxInterval
		eb.MaxElapsedTime = 0
		b = eb
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do runs fn until it succeeds, the policy gives up, or ctx is done. The last
// error is returned unchanged.
func (p Policy) Do(ctx context.Context, log logging.Logger, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := fn(ctx)
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("retrying", "op", op, "attempt", attempt, "maxAttempts", p.MaxAttempts, "wait", wait.String(), "error", err)
	}
	return backoff.RetryNotify(wrapped, p.backOff(ctx), notify)
}
