// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package history exposes the listening-history aggregates that drive
// predictive preloading: which tracks a user tends to play after a given
// track, and how often they skip. The write path lives in the analytics
// pipeline; this package defines the read capability plus an in-memory
// implementation for development and tests.
package history

import (
	"context"
	"sync"
	"time"
)

// Play is one playback event in a user's listening history.
type Play struct {
	SongID   string
	PlayedAt time.Time

	// Skipped marks tracks abandoned before 30 seconds of playback.
	Skipped bool
}

// Repository is the listening-history read capability.
type Repository interface {
	// TransitionCounts returns, for plays since the cutoff, how many
	// times each song directly followed songID in the user's history.
	TransitionCounts(ctx context.Context, userID, songID string, since time.Time) (map[string]int, error)

	// SkipRate returns the fraction of plays since the cutoff the user
	// skipped, in [0,1]. Zero plays yields zero.
	SkipRate(ctx context.Context, userID string, since time.Time) (float64, error)
}

// MemoryRepository is a map-backed Repository holding per-user play
// sequences in chronological order.
type MemoryRepository struct {
	mu    sync.RWMutex
	plays map[string][]Play
}

// NewMemoryRepository creates an empty in-memory history.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{plays: make(map[string][]Play)}
}

// Record appends a play event to the user's history. Events must be
// appended in chronological order.
func (r *MemoryRepository) Record(userID string, play Play) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plays[userID] = append(r.plays[userID], play)
}

// TransitionCounts implements Repository.
func (r *MemoryRepository) TransitionCounts(_ context.Context, userID, songID string, since time.Time) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	plays := r.plays[userID]
	for i := 0; i+1 < len(plays); i++ {
		next := plays[i+1]
		if plays[i].SongID != songID || next.PlayedAt.Before(since) {
			continue
		}
		counts[next.SongID]++
	}
	return counts, nil
}

// SkipRate implements Repository.
func (r *MemoryRepository) SkipRate(_ context.Context, userID string, since time.Time) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total, skipped := 0, 0
	for _, play := range r.plays[userID] {
		if play.PlayedAt.Before(since) {
			continue
		}
		total++
		if play.Skipped {
			skipped++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(skipped) / float64(total), nil
}
