// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package session

import (
	"context"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/logging"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/metrics"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
)

// Janitor expires sessions whose heartbeats stopped. It runs as a
// supervised service: Serve ticks at the configured interval until the
// context is cancelled.
type Janitor struct {
	store    Store
	timeout  time.Duration
	interval time.Duration
	clock    func() time.Time
}

// NewJanitor creates a janitor. clock may be nil for time.Now.
func NewJanitor(store Store, heartbeatTimeout, interval time.Duration, clock func() time.Time) *Janitor {
	if clock == nil {
		clock = time.Now
	}
	return &Janitor{store: store, timeout: heartbeatTimeout, interval: interval, clock: clock}
}

// Serve implements suture.Service.
func (j *Janitor) Serve(ctx context.Context) error {
	logging.Info().
		Str("component", "janitor").
		Dur("interval", j.interval).
		Dur("heartbeat_timeout", j.timeout).
		Msg("Session janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "janitor").Msg("Session janitor stopped")
			return ctx.Err()
		case <-ticker.C:
			j.Scan(ctx)
		}
	}
}

// Scan expires every session stale at the scan's cutoff. The cutoff is
// fixed once per scan; a heartbeat received before the cutoff wins over
// the scan because the expiry re-checks staleness under the store's
// per-session sequencer.
func (j *Janitor) Scan(ctx context.Context) {
	start := time.Now()
	cutoff := j.clock().Add(-j.timeout)

	stale, err := j.store.ListStale(ctx, cutoff)
	if err != nil {
		logging.Error().
			Str("component", "janitor").
			Err(err).
			Msg("Expiry scan failed")
		return
	}

	expired := 0
	for _, candidate := range stale {
		didExpire := false
		_, err := j.store.Mutate(ctx, candidate.ID, func(s *models.StreamingSession) error {
			didExpire = false
			if !s.StaleSince(cutoff) {
				// A heartbeat slipped in after the listing; leave it.
				return nil
			}
			now := j.clock()
			s.Status = models.SessionExpired
			s.EndedAt = &now
			didExpire = true
			return nil
		})
		if err == nil && didExpire {
			expired++
		}
		if err != nil && apperrors.CodeOf(err) != apperrors.CodeNotFound {
			logging.Warn().
				Str("component", "janitor").
				Str("session_id", candidate.ID).
				Err(err).
				Msg("Failed to expire session")
		}
	}

	metrics.JanitorScanDuration.Observe(time.Since(start).Seconds())
	if expired > 0 {
		metrics.JanitorExpired.Add(float64(expired))
		metrics.SessionsActive.Sub(float64(expired))
		for i := 0; i < expired; i++ {
			metrics.SessionsEnded.WithLabelValues("expired").Inc()
		}
		logging.Info().
			Str("component", "janitor").
			Int("expired", expired).
			Msg("Expired stale sessions")
	}
}
