// Package retry runs an operation with truncated exponential backoff and
// jitter. Errors wrapped with Permanent are returned immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const (
	defaultMultiplier = 2.0
	jitterFraction    = 0.25
)

// Policy bounds a retry loop.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64 // 0 means 2
}

// Once is a Policy that never retries.
var Once = Policy{Attempts: 1}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns the original error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls op until it succeeds, returns a permanent error, the attempts are
// exhausted or ctx is cancelled. onRetry, if non-nil, is called before each
// wait with the attempt number that failed and the delay about to be slept.
func Do(ctx context.Context, p Policy, op func() error, onRetry func(attempt int, err error, wait time.Duration)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	bo := newBackoff(p)

	var err error
	for attempt := 1; ; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= attempts {
			return fmt.Errorf("retry: gave up after %d attempts: %w", attempt, err)
		}

		wait := bo.next()
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry: %w (last error: %v)", ctx.Err(), err)
		case <-time.After(wait):
		}
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current    time.Duration
	max        time.Duration
	multiplier float64
}

func newBackoff(p Policy) *backoff {
	m := p.Multiplier
	if m <= 0 {
		m = defaultMultiplier
	}
	ceiling := p.Max
	if ceiling < p.Initial {
		ceiling = p.Initial
	}
	return &backoff{current: p.Initial, max: ceiling, multiplier: m}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * jitterFraction * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * b.multiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}
