// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package session owns the streaming session lifecycle: admission under
// per-tier concurrency caps, heartbeat accounting, song changes, and the
// background janitor that expires silent sessions.
package session

import (
	"context"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
)

// Store is the session persistence capability. Sessions are exclusively
// owned by the store; every method returns or operates on copies.
//
// Mutate is the store's sequencer: callbacks for one session run
// serialized, which gives per-session total ordering of state machine
// transitions and heartbeat merges.
type Store interface {
	// Create persists a new session. Unreachable storage surfaces as
	// UNAVAILABLE so admission fails fast instead of queueing.
	Create(ctx context.Context, s *models.StreamingSession) error

	// Get returns a copy of the session, or NOT_FOUND.
	Get(ctx context.Context, id string) (*models.StreamingSession, error)

	// Mutate applies fn to the session under the store's per-session
	// serialization and persists the result. fn returning an error
	// aborts the mutation and surfaces that error. The updated copy is
	// returned.
	Mutate(ctx context.Context, id string, fn func(*models.StreamingSession) error) (*models.StreamingSession, error)

	// ListByUser returns the user's sessions in the given statuses.
	// No statuses means all.
	ListByUser(ctx context.Context, userID string, statuses ...models.SessionStatus) ([]*models.StreamingSession, error)

	// ListStale returns non-terminal sessions whose last heartbeat is
	// older than the cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]*models.StreamingSession, error)

	// AppendMetrics appends one heartbeat's counter snapshot to the
	// session's append-only metrics log.
	AppendMetrics(ctx context.Context, id string, receivedAt time.Time, m models.HeartbeatMetrics) error

	// Ping checks store reachability for readiness probes.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// statusIn reports whether status is in the filter set; an empty set
// matches everything.
func statusIn(status models.SessionStatus, statuses []models.SessionStatus) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
