// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package buffer

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/catalog"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/history"
)

// middayClock is outside commute hours so boosts stay off by default.
func middayClock() time.Time {
	return time.Date(2026, 8, 25, 13, 0, 0, 0, time.UTC)
}

func newTestPredictor(cat *catalog.MemoryRepository, hist *history.MemoryRepository, clock func() time.Time) *Predictor {
	return NewPredictor(cat, hist, 3, clock)
}

func TestPredict_PlaylistContinuation(t *testing.T) {
	cat := catalog.NewMemoryRepository()
	cat.AddPlaylist("pl-1", []string{"s1", "s2", "s3", "s4", "s5"})
	p := newTestPredictor(cat, history.NewMemoryRepository(), middayClock)

	hints := p.Predict(context.Background(), "u1", "s2", "pl-1")
	if len(hints) != 3 {
		t.Fatalf("Hints = %d, want 3", len(hints))
	}
	wantSongs := []string{"s3", "s4", "s5"}
	wantProbs := []float64{0.9, 0.75, 0.6}
	for i, h := range hints {
		if h.SongID != wantSongs[i] {
			t.Errorf("hint[%d].SongID = %s, want %s", i, h.SongID, wantSongs[i])
		}
		if h.Probability != wantProbs[i] {
			t.Errorf("hint[%d].Probability = %f, want %f", i, h.Probability, wantProbs[i])
		}
		if h.Reason != "playlist" {
			t.Errorf("hint[%d].Reason = %s, want playlist", i, h.Reason)
		}
	}
}

func TestPredict_PlaylistTail(t *testing.T) {
	cat := catalog.NewMemoryRepository()
	cat.AddPlaylist("pl-1", []string{"s1", "s2"})
	p := newTestPredictor(cat, history.NewMemoryRepository(), middayClock)

	hints := p.Predict(context.Background(), "u1", "s1", "pl-1")
	if len(hints) != 1 || hints[0].SongID != "s2" {
		t.Errorf("Hints = %+v, want single hint for s2", hints)
	}

	// Last track of the playlist, nothing to continue with.
	if hints := p.Predict(context.Background(), "u1", "s2", "pl-1"); hints != nil {
		t.Errorf("Hints at playlist end = %+v, want none", hints)
	}
}

func TestPredict_HistoryRanking(t *testing.T) {
	hist := history.NewMemoryRepository()
	base := middayClock().Add(-48 * time.Hour)
	// s1 -> s2 three times, s1 -> s3 once.
	seq := []string{"s1", "s2", "s1", "s2", "s1", "s2", "s1", "s3"}
	for i, id := range seq {
		hist.Record("u1", history.Play{SongID: id, PlayedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	p := newTestPredictor(catalog.NewMemoryRepository(), hist, middayClock)

	hints := p.Predict(context.Background(), "u1", "s1", "")
	if len(hints) != 2 {
		t.Fatalf("Hints = %+v, want 2", hints)
	}
	if hints[0].SongID != "s2" || math.Abs(hints[0].Probability-0.75) > 1e-9 {
		t.Errorf("hint[0] = %+v, want s2 with probability 0.75", hints[0])
	}
	if hints[1].SongID != "s3" || math.Abs(hints[1].Probability-0.25) > 1e-9 {
		t.Errorf("hint[1] = %+v, want s3 with probability 0.25", hints[1])
	}
	if hints[0].Reason != "history" {
		t.Errorf("Reason = %s, want history", hints[0].Reason)
	}
}

func TestPredict_OldTransitionsIgnored(t *testing.T) {
	hist := history.NewMemoryRepository()
	old := middayClock().Add(-60 * 24 * time.Hour)
	hist.Record("u1", history.Play{SongID: "s1", PlayedAt: old})
	hist.Record("u1", history.Play{SongID: "s9", PlayedAt: old.Add(time.Minute)})
	p := newTestPredictor(catalog.NewMemoryRepository(), hist, middayClock)

	if hints := p.Predict(context.Background(), "u1", "s1", ""); hints != nil {
		t.Errorf("Hints from outside the 30-day window = %+v, want none", hints)
	}
}

func TestPredict_SkipRateLimitsHints(t *testing.T) {
	cat := catalog.NewMemoryRepository()
	cat.AddPlaylist("pl-1", []string{"s1", "s2", "s3", "s4"})
	hist := history.NewMemoryRepository()
	recent := middayClock().Add(-time.Hour)
	for i := 0; i < 10; i++ {
		hist.Record("u1", history.Play{SongID: "x", PlayedAt: recent, Skipped: i < 5})
	}
	p := newTestPredictor(cat, hist, middayClock)

	// 50% skip rate in the last 24h caps hints at one.
	hints := p.Predict(context.Background(), "u1", "s1", "pl-1")
	if len(hints) != 1 {
		t.Errorf("Hints for aggressive skipper = %d, want 1", len(hints))
	}
}

func TestPredict_CommuteBoost(t *testing.T) {
	cat := catalog.NewMemoryRepository()
	cat.AddPlaylist("pl-1", []string{"s1", "s2", "s3", "s4"})
	morningCommute := func() time.Time {
		return time.Date(2026, 8, 25, 8, 15, 0, 0, time.UTC)
	}
	p := newTestPredictor(cat, history.NewMemoryRepository(), morningCommute)

	hints := p.Predict(context.Background(), "u1", "s1", "pl-1")
	if len(hints) != 3 {
		t.Fatalf("Hints = %d, want 3", len(hints))
	}
	// 0.9 + 0.1 clamps at 1.0; the rest get the plain boost.
	wantProbs := []float64{1.0, 0.85, 0.7}
	for i, h := range hints {
		if math.Abs(h.Probability-wantProbs[i]) > 1e-9 {
			t.Errorf("hint[%d].Probability = %f, want %f", i, h.Probability, wantProbs[i])
		}
	}
}

func TestPredict_NoSignalsNoHints(t *testing.T) {
	p := newTestPredictor(catalog.NewMemoryRepository(), history.NewMemoryRepository(), middayClock)
	if hints := p.Predict(context.Background(), "u1", "s1", ""); hints != nil {
		t.Errorf("Hints = %+v, want none", hints)
	}
}

func TestPredict_DescendingProbabilities(t *testing.T) {
	hist := history.NewMemoryRepository()
	base := middayClock().Add(-24 * time.Hour)
	seq := []string{"s1", "a", "s1", "b", "s1", "b", "s1", "c", "s1", "c", "s1", "c"}
	for i, id := range seq {
		hist.Record("u1", history.Play{SongID: id, PlayedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	p := newTestPredictor(catalog.NewMemoryRepository(), hist, middayClock)

	hints := p.Predict(context.Background(), "u1", "s1", "")
	for i := 1; i < len(hints); i++ {
		if hints[i].Probability > hints[i-1].Probability {
			t.Errorf("Hints not descending: %+v", hints)
		}
	}
}
