// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package session

import (
	"context"
	"testing"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
)

func seedSession(t *testing.T, store *MemoryStore, id string, lastHeartbeat time.Time, status models.SessionStatus) {
	t.Helper()
	err := store.Create(context.Background(), &models.StreamingSession{
		ID:              id,
		UserID:          "u1",
		SongID:          "song-1",
		Status:          status,
		StartedAt:       lastHeartbeat.Add(-time.Minute),
		LastHeartbeatAt: lastHeartbeat,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
}

func TestScan_ExpiresStaleSessions(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	seedSession(t, store, "stale", now.Add(-3*time.Minute), models.SessionActive)
	seedSession(t, store, "fresh", now.Add(-10*time.Second), models.SessionActive)

	janitor := NewJanitor(store, 90*time.Second, time.Minute, clock)
	janitor.Scan(context.Background())

	stale, _ := store.Get(context.Background(), "stale")
	if stale.Status != models.SessionExpired {
		t.Errorf("stale session status = %s, want EXPIRED", stale.Status)
	}
	if stale.EndedAt == nil || !stale.EndedAt.Equal(now) {
		t.Errorf("stale session EndedAt = %v, want %s", stale.EndedAt, now)
	}

	fresh, _ := store.Get(context.Background(), "fresh")
	if fresh.Status != models.SessionActive {
		t.Errorf("fresh session status = %s, want ACTIVE", fresh.Status)
	}
}

func TestScan_IgnoresTerminalSessions(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	ended := now.Add(-time.Hour)
	seedSession(t, store, "done", now.Add(-time.Hour), models.SessionEnded)
	store.Mutate(context.Background(), "done", func(s *models.StreamingSession) error {
		s.EndedAt = &ended
		return nil
	})

	janitor := NewJanitor(store, 90*time.Second, time.Minute, func() time.Time { return now })
	janitor.Scan(context.Background())

	session, _ := store.Get(context.Background(), "done")
	if session.Status != models.SessionEnded {
		t.Errorf("status = %s, want ENDED untouched", session.Status)
	}
	if !session.EndedAt.Equal(ended) {
		t.Errorf("EndedAt restamped to %s", session.EndedAt)
	}
}

func TestScan_HeartbeatBeforeExpiryWins(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	seedSession(t, store, "racing", now.Add(-2*time.Minute), models.SessionActive)

	// Wrap the store so a heartbeat lands between the stale listing and
	// the expiry mutate, like a client reviving just as the scan runs.
	racing := &heartbeatRacingStore{MemoryStore: store, sessionID: "racing", heartbeatAt: now}
	janitor := NewJanitor(racing, 90*time.Second, time.Minute, func() time.Time { return now })
	janitor.Scan(context.Background())

	session, _ := store.Get(context.Background(), "racing")
	if session.Status != models.SessionActive {
		t.Errorf("status = %s, want ACTIVE (heartbeat must win)", session.Status)
	}
}

type heartbeatRacingStore struct {
	*MemoryStore
	sessionID   string
	heartbeatAt time.Time
	fired       bool
}

func (s *heartbeatRacingStore) ListStale(ctx context.Context, cutoff time.Time) ([]*models.StreamingSession, error) {
	stale, err := s.MemoryStore.ListStale(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if !s.fired {
		s.fired = true
		s.MemoryStore.Mutate(ctx, s.sessionID, func(sess *models.StreamingSession) error {
			sess.LastHeartbeatAt = s.heartbeatAt
			return nil
		})
	}
	return stale, nil
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	store := NewMemoryStore()
	janitor := NewJanitor(store, 90*time.Second, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- janitor.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop after cancellation")
	}
}
