// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
)

// fakeClock lets tests advance breaker time without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock) *Breaker[string] {
	return NewBreaker[string](Settings{
		Name:             "test",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     60 * time.Second,
		HalfOpenProbes:   3,
		Clock:            clock.Now,
	})
}

var errUpstream = apperrors.New(apperrors.CodeUnavailable, "upstream down")

func failCall(b *Breaker[string]) error {
	_, err := b.Execute(func() (string, error) { return "", errUpstream })
	return err
}

func okCall(b *Breaker[string]) error {
	_, err := b.Execute(func() (string, error) { return "ok", nil })
	return err
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 4; i++ {
		failCall(b)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("State after 4 failures = %s, want closed", got)
	}

	failCall(b)
	if got := b.State(); got != StateOpen {
		t.Fatalf("State after 5 failures = %s, want open", got)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 4; i++ {
		failCall(b)
	}
	okCall(b)
	for i := 0; i < 4; i++ {
		failCall(b)
	}

	if got := b.State(); got != StateClosed {
		t.Errorf("Non-consecutive failures must not trip the breaker, state = %s", got)
	}
}

func TestBreaker_FastFailsWhileOpen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		failCall(b)
	}

	invoked := false
	_, err := b.Execute(func() (string, error) {
		invoked = true
		return "", nil
	})
	if !errors.Is(err, ErrOpenState) {
		t.Errorf("Execute while open = %v, want ErrOpenState", err)
	}
	if invoked {
		t.Error("Operation must not be invoked while the breaker is open")
	}
	if apperrors.CodeOf(err) != apperrors.CodeCircuitOpen {
		t.Errorf("Open-state error code = %s, want CIRCUIT_OPEN", apperrors.CodeOf(err))
	}
}

func TestBreaker_RecoveryThroughHalfOpen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		failCall(b)
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("State = %s, want open", got)
	}

	// Just before the reset timeout the breaker still fast-fails.
	clock.Advance(59 * time.Second)
	if err := okCall(b); !errors.Is(err, ErrOpenState) {
		t.Fatalf("Call at 59s = %v, want ErrOpenState", err)
	}

	// After the timeout, probes are admitted and two successes close it.
	clock.Advance(2 * time.Second)
	if got := b.State(); got != StateHalfOpen {
		t.Fatalf("State after reset timeout = %s, want half-open", got)
	}
	if err := okCall(b); err != nil {
		t.Fatalf("First probe failed: %v", err)
	}
	if err := okCall(b); err != nil {
		t.Fatalf("Second probe failed: %v", err)
	}
	if got := b.State(); got != StateClosed {
		t.Errorf("State after 2 probe successes = %s, want closed", got)
	}
}

func TestBreaker_ProbeFailureReopensAndRestartsTimer(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		failCall(b)
	}
	clock.Advance(61 * time.Second)

	if err := failCall(b); err == nil {
		t.Fatal("Probe was expected to fail")
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("State after probe failure = %s, want open", got)
	}

	// The reset timer restarted at the probe failure, so 59s later the
	// breaker is still open.
	clock.Advance(59 * time.Second)
	if got := b.State(); got != StateOpen {
		t.Errorf("State 59s after re-open = %s, want open", got)
	}
	clock.Advance(2 * time.Second)
	if got := b.State(); got != StateHalfOpen {
		t.Errorf("State after full reset timeout = %s, want half-open", got)
	}
}

func TestBreaker_HalfOpenProbeBudget(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		failCall(b)
	}
	clock.Advance(61 * time.Second)

	// Admit 3 concurrent probes; the 4th caller is rejected.
	release := make(chan struct{})
	started := make(chan struct{}, 3)
	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := b.Execute(func() (string, error) {
				started <- struct{}{}
				<-release
				return "ok", nil
			})
			results <- err
		}()
	}
	for i := 0; i < 3; i++ {
		<-started
	}

	if err := okCall(b); !errors.Is(err, ErrTooManyProbes) {
		t.Errorf("Fourth concurrent probe = %v, want ErrTooManyProbes", err)
	}

	close(release)
	for i := 0; i < 3; i++ {
		if err := <-results; err != nil {
			t.Errorf("Admitted probe returned error: %v", err)
		}
	}
	if got := b.State(); got != StateClosed {
		t.Errorf("State after probe successes = %s, want closed", got)
	}
}

func TestBreaker_OnStateChangeSequence(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var transitions []string
	b := NewBreaker[string](Settings{
		Name:             "hook",
		FailureThreshold: 2,
		SuccessThreshold: 1,
		ResetTimeout:     time.Second,
		HalfOpenProbes:   1,
		Clock:            clock.Now,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	failCall(b)
	failCall(b)
	clock.Advance(2 * time.Second)
	okCall(b)

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("Transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("Transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestBreaker_SnapshotReportsOpenState(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestBreaker(clock)

	for i := 0; i < 5; i++ {
		failCall(b)
	}

	snap := b.Snapshot()
	if snap.State != "open" {
		t.Errorf("Snapshot state = %s, want open", snap.State)
	}
	if snap.OpenedAt == nil {
		t.Error("Snapshot of open breaker must carry openedAt")
	}
	if snap.LastFailureAt == nil {
		t.Error("Snapshot must carry lastFailureAt after failures")
	}
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond}
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return apperrors.New(apperrors.CodeNotFound, "no such object")
	})

	if calls != 1 {
		t.Errorf("Non-retryable error was attempted %d times, want 1", calls)
	}
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Errorf("Error code = %s, want NOT_FOUND", apperrors.CodeOf(err))
	}
}

func TestRetry_ExhaustsAttemptBudget(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errUpstream
	})

	if calls != 3 {
		t.Errorf("Retryable error was attempted %d times, want 3", calls)
	}
	if !errors.Is(err, errUpstream) {
		t.Errorf("Final error = %v, want the last attempt's error", err)
	}
}

func TestRetry_SucceedsMidway(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	err := policy.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errUpstream
		}
		return nil
	})

	if err != nil {
		t.Errorf("Execute = %v, want success", err)
	}
	if calls != 2 {
		t.Errorf("Attempts = %d, want 2", calls)
	}
}

func TestRetry_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := RetryPolicy{MaxAttempts: 10, InitialDelay: 50 * time.Millisecond}
	err := policy.Execute(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errUpstream
	})

	if err == nil {
		t.Fatal("Expected error after context cancellation")
	}
	if calls != 1 {
		t.Errorf("Attempts after cancellation = %d, want 1", calls)
	}
}

func TestExecutor_ExhaustedRetriesCountAsOneBreakerFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestBreaker(clock)
	exec := NewExecutor(b, RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}, 0)

	calls := 0
	op := func(ctx context.Context) (string, error) {
		calls++
		return "", errUpstream
	}

	// 4 exhausted sequences keep the breaker closed, the 5th trips it.
	for i := 0; i < 5; i++ {
		exec.Do(context.Background(), op)
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("State after 5 exhausted sequences = %s, want open", got)
	}
	if calls != 15 {
		t.Errorf("Underlying attempts = %d, want 15 (5 sequences x 3)", calls)
	}

	// While open, no attempts at all.
	_, err := exec.Do(context.Background(), op)
	if !errors.Is(err, ErrOpenState) {
		t.Errorf("Do while open = %v, want ErrOpenState", err)
	}
	if calls != 15 {
		t.Errorf("Attempts while open = %d, want 15 (fast fail)", calls)
	}
}

func TestExecutor_AppliesCallTimeout(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := newTestBreaker(clock)
	exec := NewExecutor(b, RetryPolicy{MaxAttempts: 1}, 10*time.Millisecond)

	_, err := exec.Do(context.Background(), func(ctx context.Context) (string, error) {
		select {
		case <-ctx.Done():
			return "", apperrors.Wrap(apperrors.CodeTimeout, "call timed out", ctx.Err())
		case <-time.After(time.Second):
			return "late", nil
		}
	})

	if apperrors.CodeOf(err) != apperrors.CodeTimeout {
		t.Errorf("Error code = %s, want TIMEOUT", apperrors.CodeOf(err))
	}
}
