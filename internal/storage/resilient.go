// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package storage

import (
	"context"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/logging"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/metrics"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/resilience"
)

// ResilientStore fronts a primary object store with an optional fallback.
// Each endpoint gets its own circuit breaker and retry budget; a request
// moves to the fallback only after the primary's breaker fast-fails or its
// retries are exhausted. Fallback is nil-safe: without one, primary errors
// surface directly.
type ResilientStore struct {
	primary  Client
	fallback Client

	primaryExec  *resilience.Executor[string]
	fallbackExec *resilience.Executor[string]
}

// ResilientOptions configures the resilient store.
type ResilientOptions struct {
	Primary  Client
	Fallback Client // optional

	Breaker resilience.Settings
	Retry   resilience.RetryPolicy

	// CallTimeout bounds each individual attempt.
	CallTimeout time.Duration
}

// NewResilientStore wires per-endpoint breakers around the clients.
func NewResilientStore(opts ResilientOptions) *ResilientStore {
	s := &ResilientStore{
		primary:  opts.Primary,
		fallback: opts.Fallback,
	}

	primarySettings := opts.Breaker
	primarySettings.Name = "storage-primary"
	primarySettings.OnStateChange = breakerHook
	s.primaryExec = resilience.NewExecutor(
		resilience.NewBreaker[string](primarySettings), opts.Retry, opts.CallTimeout)

	if opts.Fallback != nil {
		fallbackSettings := opts.Breaker
		fallbackSettings.Name = "storage-fallback"
		fallbackSettings.OnStateChange = breakerHook
		s.fallbackExec = resilience.NewExecutor(
			resilience.NewBreaker[string](fallbackSettings), opts.Retry, opts.CallTimeout)
	}

	return s
}

// breakerHook publishes breaker transitions to logs and metrics.
func breakerHook(name string, from, to resilience.State) {
	logging.Warn().
		Str("component", "storage").
		Str("breaker", name).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("Circuit breaker state changed")
	metrics.RecordBreakerTransition(name, from.String(), to.String(), float64(to))
}

// SignedURL returns a signed URL for key, preferring the primary store.
func (s *ResilientStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	result, err := s.primaryExec.Do(ctx, func(ctx context.Context) (string, error) {
		return s.primary.SignedURL(ctx, key, ttl)
	})
	if err == nil {
		return result, nil
	}
	if s.fallbackExec == nil || !failoverWorthy(err) {
		return "", err
	}

	logging.Ctx(ctx).Warn().
		Str("component", "storage").
		Str("key", key).
		Err(err).
		Msg("Primary store failed, using fallback")
	metrics.StorageFailovers.Inc()

	result, fbErr := s.fallbackExec.Do(ctx, func(ctx context.Context) (string, error) {
		return s.fallback.SignedURL(ctx, key, ttl)
	})
	if fbErr != nil {
		return "", apperrors.Wrap(apperrors.CodeUnavailable, "both object stores unavailable", fbErr)
	}
	return result, nil
}

// Exists reports whether the object is present, preferring the primary.
func (s *ResilientStore) Exists(ctx context.Context, key string) (bool, error) {
	found := false
	_, err := s.primaryExec.Do(ctx, func(ctx context.Context) (string, error) {
		ok, err := s.primary.Exists(ctx, key)
		found = ok
		return "", err
	})
	if err == nil {
		return found, nil
	}
	if s.fallbackExec == nil || !failoverWorthy(err) {
		return false, err
	}

	metrics.StorageFailovers.Inc()
	_, fbErr := s.fallbackExec.Do(ctx, func(ctx context.Context) (string, error) {
		ok, err := s.fallback.Exists(ctx, key)
		found = ok
		return "", err
	})
	if fbErr != nil {
		return false, apperrors.Wrap(apperrors.CodeUnavailable, "both object stores unavailable", fbErr)
	}
	return found, nil
}

// Ping checks reachability. It succeeds if either store responds, so
// readiness survives a primary outage with a healthy fallback.
func (s *ResilientStore) Ping(ctx context.Context) error {
	_, err := s.primaryExec.Do(ctx, func(ctx context.Context) (string, error) {
		return "", s.primary.Ping(ctx)
	})
	if err == nil {
		return nil
	}
	if s.fallbackExec == nil {
		return err
	}
	_, fbErr := s.fallbackExec.Do(ctx, func(ctx context.Context) (string, error) {
		return "", s.fallback.Ping(ctx)
	})
	if fbErr != nil {
		return apperrors.Wrap(apperrors.CodeUnavailable, "both object stores unavailable", fbErr)
	}
	return nil
}

// Snapshots returns the breaker states for health reporting.
func (s *ResilientStore) Snapshots() []resilience.Snapshot {
	snaps := []resilience.Snapshot{s.primaryExec.Breaker().Snapshot()}
	if s.fallbackExec != nil {
		snaps = append(snaps, s.fallbackExec.Breaker().Snapshot())
	}
	return snaps
}

// ReadinessProbe returns a ping-style check that verifies the store can
// answer for the given probe key. A missing probe object still proves the
// layer reachable; only transport failures fail the probe.
func (s *ResilientStore) ReadinessProbe(key string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.Exists(ctx, key)
		return err
	}
}

// failoverWorthy reports whether an error justifies trying the fallback.
// Client-side errors (bad key, missing object) would fail identically
// against the fallback, so only infrastructure failures qualify.
func failoverWorthy(err error) bool {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeCircuitOpen, apperrors.CodeUnavailable, apperrors.CodeTimeout, apperrors.CodeInternal:
		return true
	default:
		return false
	}
}
