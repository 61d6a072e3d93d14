// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
)

// RetryPolicy retries transient failures with exponential backoff and
// +-20% jitter. Attempts counts total invocations, not re-invocations:
// MaxAttempts=3 means at most 3 calls of the operation.
type RetryPolicy struct {
	// MaxAttempts is the total invocation budget. Default 3.
	MaxAttempts int

	// InitialDelay is the base delay before the first retry. Default 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the delay between attempts. Default 5s.
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor. Default 2.0.
	Multiplier float64

	// Retryable decides whether an error is worth another attempt.
	// Defaults to apperrors.Retryable (TIMEOUT and UNAVAILABLE only).
	Retryable func(error) bool

	// OnRetry is called before each re-invocation with the attempt number
	// just failed (1-based) and its error. Optional.
	OnRetry func(attempt int, err error)
}

// withDefaults fills zero values with production defaults.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 2.0
	}
	if p.Retryable == nil {
		p.Retryable = apperrors.Retryable
	}
	return p
}

// Execute runs op until it succeeds, exhausts the attempt budget, fails
// with a non-retryable error, or the context is cancelled. The error of
// the final attempt is returned unwrapped.
func (p RetryPolicy) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	p = p.withDefaults()

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialDelay
	exp.MaxInterval = p.MaxDelay
	exp.Multiplier = p.Multiplier
	exp.RandomizationFactor = 0.2
	exp.MaxElapsedTime = 0 // attempt count, not elapsed time, is the budget

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, _ time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxAttempts-1)), ctx)
	return backoff.RetryNotify(operation, b, notify)
}
