// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package catalog exposes the song and playlist metadata the streaming
// core needs: durations for manifest generation, available qualities for
// ladder filtering, and playlist ordering for preload prediction. The
// catalog itself is owned by another service; this package defines the
// read capability and an in-memory implementation used in development
// and tests.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
)

// Song is the metadata slice of a track relevant to streaming.
type Song struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	DurationSec int    `json:"durationSec"`

	// Qualities is the ascending list of encoded bitrates (kbps)
	// available for this track.
	Qualities []int `json:"qualities"`
}

// ObjectKey returns the storage key of the song's rendition at the given
// bitrate.
func (s *Song) ObjectKey(quality int) string {
	return fmt.Sprintf("audio/%s/%d.mp4", s.ID, quality)
}

// SegmentKey returns the storage key of one HLS segment of a rendition.
func (s *Song) SegmentKey(quality, index int) string {
	return fmt.Sprintf("audio/%s/%d/segment-%05d.ts", s.ID, quality, index)
}

// Repository is the catalog read capability.
type Repository interface {
	// Song returns the track metadata, or NOT_FOUND.
	Song(ctx context.Context, songID string) (*Song, error)

	// PlaylistTracks returns the ordered song IDs of a playlist, or
	// NOT_FOUND for an unknown playlist.
	PlaylistTracks(ctx context.Context, playlistID string) ([]string, error)
}

// MemoryRepository is a map-backed Repository.
type MemoryRepository struct {
	mu        sync.RWMutex
	songs     map[string]*Song
	playlists map[string][]string
}

// NewMemoryRepository creates an empty in-memory catalog.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		songs:     make(map[string]*Song),
		playlists: make(map[string][]string),
	}
}

// AddSong inserts or replaces a track.
func (r *MemoryRepository) AddSong(song *Song) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.songs[song.ID] = song
}

// AddPlaylist inserts or replaces a playlist's track order.
func (r *MemoryRepository) AddPlaylist(playlistID string, trackIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playlists[playlistID] = append([]string(nil), trackIDs...)
}

// Song implements Repository.
func (r *MemoryRepository) Song(_ context.Context, songID string) (*Song, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	song, ok := r.songs[songID]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "song %s not found", songID)
	}
	copied := *song
	return &copied, nil
}

// PlaylistTracks implements Repository.
func (r *MemoryRepository) PlaylistTracks(_ context.Context, playlistID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tracks, ok := r.playlists[playlistID]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "playlist %s not found", playlistID)
	}
	return append([]string(nil), tracks...), nil
}
