package apperrors

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy is exponential backoff with decorrelated jitter, per
// SPEC_FULL.md §7: base 2s, cap 60s, at most 6 attempts.
type RetryPolicy struct {
	Base       time.Duration
	Cap        time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy is base 2s, cap 60s, 6 attempts. No caller in this
// module uses it: the discovery service's DHT publish retries with its own
// RetryPolicy of the same values, and neither the trust-registry fetch nor
// gossip publish retries at all.
var DefaultRetryPolicy = RetryPolicy{
	Base:        2 * time.Second,
	Cap:         60 * time.Second,
	MaxAttempts: 6,
}

// Do runs fn until it succeeds, fn's error is not Retryable, the policy's
// attempt budget is exhausted, or ctx is canceled. It returns the last
// error seen. Sleeps use decorrelated jitter: next = min(cap, rand(base,
// prev*3)), which avoids the thundering-herd synchronization of plain
// exponential backoff across many nodes retrying the same dependency.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	sleep := p.Base
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !Retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		next := sleep * 3
		if next > p.Cap {
			next = p.Cap
		}
		wait := p.Base + time.Duration(rand.Int63n(int64(next-p.Base+1)))
		if wait > p.Cap {
			wait = p.Cap
		}
		sleep = wait

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
