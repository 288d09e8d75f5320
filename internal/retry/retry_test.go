package retry

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// fakeSleeper records requested sleep durations without waiting.
type fakeSleeper struct {
	slept []time.Duration
	err   error
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.slept = append(f.slept, d)
	return nil
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	sleeper := &fakeSleeper{}
	p := Policy{Attempts: 5, MinBackoff: time.Second, MaxBackoff: 2 * time.Second, Sleeper: sleeper}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
	if len(sleeper.slept) != 0 {
		t.Errorf("slept %d times before a first-attempt success", len(sleeper.slept))
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	sleeper := &fakeSleeper{}
	p := Policy{
		Attempts:   5,
		MinBackoff: 2 * time.Second,
		MaxBackoff: 4 * time.Second,
		Sleeper:    sleeper,
		Rand:       rand.New(rand.NewSource(1)),
	}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
	if len(sleeper.slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(sleeper.slept))
	}
	for _, d := range sleeper.slept {
		if d < 2*time.Second || d > 4*time.Second {
			t.Errorf("backoff %v outside [2s, 4s]", d)
		}
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	sleeper := &fakeSleeper{}
	p := Policy{Attempts: 5, MinBackoff: time.Second, MaxBackoff: time.Second, Sleeper: sleeper}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("Do() succeeded, want error")
	}
	if calls != 5 {
		t.Errorf("op called %d times, want 5", calls)
	}
	if errors.Cause(err).Error() != "boom" {
		t.Errorf("cause = %v, want boom", errors.Cause(err))
	}
}

func TestDoStopsOnCanceledBackoff(t *testing.T) {
	sleeper := &fakeSleeper{err: context.Canceled}
	p := Policy{Attempts: 5, Sleeper: sleeper}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	if err != context.Canceled {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{Sleeper: &fakeSleeper{}}.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("Do() = %v with %d calls, want nil and 1 call", err, calls)
	}
}
