// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package resilience

import (
	"context"
	"time"
)

// Executor composes a circuit breaker around a retry policy:
// breaker.Execute(retry.Execute(op)). One exhausted retry sequence counts
// as one breaker failure, and while the breaker is OPEN no retries run.
type Executor[T any] struct {
	breaker *Breaker[T]
	retry   RetryPolicy

	// callTimeout bounds each individual attempt. Zero disables it.
	callTimeout time.Duration
}

// NewExecutor builds an executor from a breaker and retry policy.
func NewExecutor[T any](breaker *Breaker[T], retry RetryPolicy, callTimeout time.Duration) *Executor[T] {
	return &Executor[T]{breaker: breaker, retry: retry, callTimeout: callTimeout}
}

// Breaker exposes the underlying breaker for health reporting.
func (e *Executor[T]) Breaker() *Breaker[T] {
	return e.breaker
}

// Do runs op through the breaker and retry policy.
func (e *Executor[T]) Do(ctx context.Context, op func(ctx context.Context) (T, error)) (T, error) {
	return e.breaker.Execute(func() (T, error) {
		var result T
		err := e.retry.Execute(ctx, func(ctx context.Context) error {
			attemptCtx := ctx
			if e.callTimeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, e.callTimeout)
				defer cancel()
			}
			r, err := op(attemptCtx)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		return result, err
	})
}
