// Package retry provides a bounded, jittered retry policy with an
// injectable sleeper so callers can be tested against a fake clock.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

// Sleeper pauses for a duration, returning early with the context's
// error when it is canceled.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper sleeps on the wall clock.
type ClockSleeper struct{}

func (ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy bounds a retryable operation. Between attempts it sleeps a
// duration drawn uniformly from [MinBackoff, MaxBackoff].
type Policy struct {
	Attempts   int
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// Sleeper defaults to ClockSleeper. Rand defaults to the
	// global source.
	Sleeper Sleeper
	Rand    *rand.Rand
}

// Do runs op until it succeeds or the policy's attempts are spent.
// The last attempt's error is returned, wrapped with the attempt
// count. Context cancellation during backoff stops retrying.
func (p Policy) Do(ctx context.Context, op func() error) error {
	sleeper := p.Sleeper
	if sleeper == nil {
		sleeper = ClockSleeper{}
	}
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if serr := sleeper.Sleep(ctx, p.backoff()); serr != nil {
				return serr
			}
		}
		if err = op(); err == nil {
			return nil
		}
	}
	return errors.Wrapf(err, "gave up after %d attempts", attempts)
}

func (p Policy) backoff() time.Duration {
	if p.MaxBackoff <= p.MinBackoff {
		return p.MinBackoff
	}
	spread := p.MaxBackoff - p.MinBackoff
	return p.MinBackoff + time.Duration(p.random()*float64(spread))
}

func (p Policy) random() float64 {
	if p.Rand != nil {
		return p.Rand.Float64()
	}
	return rand.Float64()
}
