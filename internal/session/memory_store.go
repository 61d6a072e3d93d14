// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
)

// MetricsEntry is one record of the in-memory metrics log.
type MetricsEntry struct {
	SessionID  string
	ReceivedAt time.Time
	Metrics    models.HeartbeatMetrics
}

// MemoryStore implements Store with a mutex-guarded map. It backs tests
// and single-node development; the mutex provides the per-session
// serialization Mutate promises.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.StreamingSession
	log      []MetricsEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.StreamingSession)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, session *models.StreamingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.StreamingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "session %s not found", id)
	}
	copied := *session
	return &copied, nil
}

// Mutate implements Store.
func (s *MemoryStore) Mutate(_ context.Context, id string, fn func(*models.StreamingSession) error) (*models.StreamingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "session %s not found", id)
	}
	working := *session
	if err := fn(&working); err != nil {
		return nil, err
	}
	s.sessions[id] = &working
	copied := working
	return &copied, nil
}

// ListByUser implements Store.
func (s *MemoryStore) ListByUser(_ context.Context, userID string, statuses ...models.SessionStatus) ([]*models.StreamingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.StreamingSession
	for _, session := range s.sessions {
		if session.UserID != userID || !statusIn(session.Status, statuses) {
			continue
		}
		copied := *session
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ListStale implements Store.
func (s *MemoryStore) ListStale(_ context.Context, cutoff time.Time) ([]*models.StreamingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.StreamingSession
	for _, session := range s.sessions {
		if session.StaleSince(cutoff) {
			copied := *session
			out = append(out, &copied)
		}
	}
	return out, nil
}

// AppendMetrics implements Store.
func (s *MemoryStore) AppendMetrics(_ context.Context, id string, receivedAt time.Time, m models.HeartbeatMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, MetricsEntry{SessionID: id, ReceivedAt: receivedAt, Metrics: m})
	return nil
}

// MetricsLog returns a copy of the append-only log, for tests.
func (s *MemoryStore) MetricsLog() []MetricsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MetricsEntry(nil), s.log...)
}

// Ping implements Store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
