// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package resilience provides the circuit breaker and retry fabric wrapping
// the streaming core's outbound paths (object storage, CDN).
//
// One breaker guards one upstream resource. Breakers are instantiated per
// distinct endpoint (primary store, fallback store, each CDN domain) and
// passed explicitly to collaborators; there are no process-wide singletons.
package resilience

import (
	"sync"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
)

// State is the circuit breaker state.
type State int32

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the lowercase state name for logging and health output.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Fast-fail errors returned without invoking the underlying operation.
var (
	// ErrOpenState is returned while the breaker is OPEN.
	ErrOpenState = apperrors.New(apperrors.CodeCircuitOpen, "circuit breaker is open")

	// ErrTooManyProbes is returned in HALF_OPEN once the probe budget is
	// exhausted by concurrent callers.
	ErrTooManyProbes = apperrors.New(apperrors.CodeCircuitOpen, "circuit breaker probe limit reached")
)

// Settings configures a Breaker.
//
// The defaults (threshold 5, success threshold 2, reset 60s, 3 probes)
// match the production resilience configuration.
type Settings struct {
	// Name identifies the breaker in logs, metrics, and health output.
	Name string

	// FailureThreshold is the consecutive-failure count that trips
	// CLOSED -> OPEN. Default 5.
	FailureThreshold int

	// SuccessThreshold is the half-open success count that closes the
	// breaker. Must not exceed HalfOpenProbes. Default 2.
	SuccessThreshold int

	// ResetTimeout is the OPEN dwell time before HALF_OPEN. Default 60s.
	ResetTimeout time.Duration

	// HalfOpenProbes is the number of concurrent probe calls admitted in
	// HALF_OPEN. Default 3.
	HalfOpenProbes int

	// OnStateChange is called after each transition, outside the breaker
	// lock's critical work but before Execute returns. Optional.
	OnStateChange func(name string, from, to State)

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// withDefaults fills zero values with production defaults.
func (s Settings) withDefaults() Settings {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = 2
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = 60 * time.Second
	}
	if s.HalfOpenProbes <= 0 {
		s.HalfOpenProbes = 3
	}
	if s.SuccessThreshold > s.HalfOpenProbes {
		s.SuccessThreshold = s.HalfOpenProbes
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	return s
}

// Snapshot is a point-in-time view of breaker state for health reporting.
type Snapshot struct {
	Name          string     `json:"name"`
	State         string     `json:"state"`
	FailureCount  int        `json:"failureCount"`
	SuccessCount  int        `json:"successCount"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
	OpenedAt      *time.Time `json:"openedAt,omitempty"`
}

// Breaker is a circuit breaker state machine.
//
// The lock is held only across state transitions and counter updates,
// never across the underlying call. State observed by one caller is
// linearizable with respect to transitions.
type Breaker[T any] struct {
	settings Settings

	mu            sync.Mutex
	state         State
	failures      int // consecutive failures in CLOSED
	successes     int // total successes since last transition
	probeInFlight int // admitted probes currently executing (HALF_OPEN)
	probeSuccess  int // probe successes this HALF_OPEN episode
	lastFailureAt time.Time
	openedAt      time.Time
}

// NewBreaker creates a circuit breaker with the given settings.
func NewBreaker[T any](settings Settings) *Breaker[T] {
	return &Breaker[T]{settings: settings.withDefaults()}
}

// Name returns the breaker's identifier.
func (b *Breaker[T]) Name() string {
	return b.settings.Name
}

// State returns the current state, promoting OPEN to HALF_OPEN if the
// reset timeout has elapsed.
func (b *Breaker[T]) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return b.state
}

// Snapshot returns the current state for health aggregation.
func (b *Breaker[T]) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()

	snap := Snapshot{
		Name:         b.settings.Name,
		State:        b.state.String(),
		FailureCount: b.failures,
		SuccessCount: b.successes,
	}
	if !b.lastFailureAt.IsZero() {
		t := b.lastFailureAt
		snap.LastFailureAt = &t
	}
	if b.state == StateOpen {
		t := b.openedAt
		snap.OpenedAt = &t
	}
	return snap
}

// Execute runs op under the breaker. While OPEN it fast-fails with
// ErrOpenState without invoking op.
func (b *Breaker[T]) Execute(op func() (T, error)) (T, error) {
	var zero T

	if err := b.beforeCall(); err != nil {
		return zero, err
	}

	result, err := op()
	b.afterCall(err == nil)
	if err != nil {
		return zero, err
	}
	return result, nil
}

// beforeCall admits or rejects the call under the current state.
func (b *Breaker[T]) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeHalfOpenLocked()

	switch b.state {
	case StateOpen:
		return ErrOpenState
	case StateHalfOpen:
		if b.probeInFlight >= b.settings.HalfOpenProbes {
			return ErrTooManyProbes
		}
		b.probeInFlight++
	}
	return nil
}

// afterCall records the outcome and drives transitions.
func (b *Breaker[T]) afterCall(success bool) {
	b.mu.Lock()
	var from, to State
	changed := false

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			b.successes++
		} else {
			b.failures++
			b.lastFailureAt = b.settings.Clock()
			if b.failures >= b.settings.FailureThreshold {
				from, to = b.state, StateOpen
				b.transitionLocked(StateOpen)
				changed = true
			}
		}

	case StateHalfOpen:
		b.probeInFlight--
		if success {
			b.probeSuccess++
			b.successes++
			if b.probeSuccess >= b.settings.SuccessThreshold {
				from, to = b.state, StateClosed
				b.transitionLocked(StateClosed)
				changed = true
			}
		} else {
			// Any probe failure re-opens and restarts the reset timer.
			b.lastFailureAt = b.settings.Clock()
			from, to = b.state, StateOpen
			b.transitionLocked(StateOpen)
			changed = true
		}

	case StateOpen:
		// A call that was admitted before the trip finished after it;
		// its outcome no longer matters.
	}
	b.mu.Unlock()

	if changed && b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.settings.Name, from, to)
	}
}

// maybeHalfOpenLocked promotes OPEN to HALF_OPEN once the reset timeout
// has elapsed. Must be called with mu held.
func (b *Breaker[T]) maybeHalfOpenLocked() {
	if b.state != StateOpen {
		return
	}
	if b.settings.Clock().Sub(b.openedAt) < b.settings.ResetTimeout {
		return
	}
	from := b.state
	b.transitionLocked(StateHalfOpen)
	if b.settings.OnStateChange != nil {
		// Called with mu held; hooks must not call back into the breaker.
		b.settings.OnStateChange(b.settings.Name, from, StateHalfOpen)
	}
}

// transitionLocked applies a state change and resets episode counters.
// Must be called with mu held.
func (b *Breaker[T]) transitionLocked(to State) {
	b.state = to
	b.probeInFlight = 0
	b.probeSuccess = 0
	switch to {
	case StateOpen:
		b.openedAt = b.settings.Clock()
	case StateClosed:
		b.failures = 0
		b.successes = 0
	}
}
