// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package buffer

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/catalog"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/history"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/metrics"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
)

// Playlist continuation probabilities for the first, second, and third
// upcoming tracks.
var playlistProbabilities = []float64{0.9, 0.75, 0.6}

const (
	coPlayWindow    = 30 * 24 * time.Hour
	skipRateWindow  = 24 * time.Hour
	skipRateCeiling = 0.4
	commuteBoost    = 0.1
)

// Predictor produces preload hints from listening history and playlist
// context. Data access goes through the repository capabilities so the
// prediction rules stay pure and testable.
type Predictor struct {
	catalog catalog.Repository
	history history.Repository
	limit   int
	clock   func() time.Time
}

// NewPredictor creates a predictor. limit caps hints per request; clock
// may be nil for time.Now.
func NewPredictor(cat catalog.Repository, hist history.Repository, limit int, clock func() time.Time) *Predictor {
	if limit < 1 {
		limit = 3
	}
	if clock == nil {
		clock = time.Now
	}
	return &Predictor{catalog: cat, history: hist, limit: limit, clock: clock}
}

// Predict returns up to the configured number of preload hints for the
// user's current track, ordered by descending probability. playlistID is
// empty when the user is not playing from a playlist. Prediction is
// advisory: repository failures yield no hints, never an error.
func (p *Predictor) Predict(ctx context.Context, userID, currentSongID, playlistID string) []models.PreloadHint {
	now := p.clock()
	limit := p.limit

	// Aggressive skippers get one hint at most; warming caches for
	// tracks they will skip past wastes client bandwidth.
	if rate, err := p.history.SkipRate(ctx, userID, now.Add(-skipRateWindow)); err == nil && rate > skipRateCeiling {
		limit = 1
	}

	hints := p.playlistHints(ctx, currentSongID, playlistID, limit)
	reason := "playlist"
	if len(hints) == 0 {
		hints = p.historyHints(ctx, userID, currentSongID, now, limit)
		reason = "history"
	}
	if len(hints) == 0 {
		metrics.PreloadHintsServed.WithLabelValues("none").Inc()
		return nil
	}

	applyCommuteBoost(hints, now)
	metrics.PreloadHintsServed.WithLabelValues(reason).Inc()
	return hints
}

// playlistHints continues the playlist the user is playing from.
func (p *Predictor) playlistHints(ctx context.Context, currentSongID, playlistID string, limit int) []models.PreloadHint {
	if playlistID == "" {
		return nil
	}
	tracks, err := p.catalog.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil
	}

	position := -1
	for i, id := range tracks {
		if id == currentSongID {
			position = i
			break
		}
	}
	if position < 0 {
		return nil
	}

	var hints []models.PreloadHint
	for i := position + 1; i < len(tracks) && len(hints) < limit && len(hints) < len(playlistProbabilities); i++ {
		hints = append(hints, models.PreloadHint{
			SongID:      tracks[i],
			Probability: playlistProbabilities[len(hints)],
			Reason:      "playlist",
		})
	}
	return hints
}

// historyHints ranks co-played tracks from the 30-day window by
// conditional play frequency, normalized to probabilities.
func (p *Predictor) historyHints(ctx context.Context, userID, currentSongID string, now time.Time, limit int) []models.PreloadHint {
	counts, err := p.history.TransitionCounts(ctx, userID, currentSongID, now.Add(-coPlayWindow))
	if err != nil || len(counts) == 0 {
		return nil
	}

	total := 0
	for _, c := range counts {
		total += c
	}

	hints := make([]models.PreloadHint, 0, len(counts))
	for songID, count := range counts {
		hints = append(hints, models.PreloadHint{
			SongID:      songID,
			Probability: float64(count) / float64(total),
			Reason:      "history",
		})
	}
	// Ties break on song ID so the ordering is deterministic.
	sort.Slice(hints, func(i, j int) bool {
		if hints[i].Probability != hints[j].Probability {
			return hints[i].Probability > hints[j].Probability
		}
		return hints[i].SongID < hints[j].SongID
	})
	if len(hints) > limit {
		hints = hints[:limit]
	}
	return hints
}

// applyCommuteBoost raises the top hints' probabilities during commute
// hours (07:00-09:00 and 17:00-19:00 local), clamped at 1.0.
func applyCommuteBoost(hints []models.PreloadHint, now time.Time) {
	hour := now.Hour()
	commute := (hour >= 7 && hour < 9) || (hour >= 17 && hour < 19)
	if !commute {
		return
	}
	for i := range hints {
		if i >= 3 {
			break
		}
		hints[i].Probability = math.Min(1.0, hints[i].Probability+commuteBoost)
	}
}
