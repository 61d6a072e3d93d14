// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package models defines the domain types shared by the streaming core:
// streaming sessions, network profiles, buffer configurations, health
// scores, and preload hints.
package models

import (
	"time"
)

// StreamType identifies how the client consumes the audio.
type StreamType string

const (
	StreamTypeDirect StreamType = "DIRECT"
	StreamTypeCDN    StreamType = "CDN"
	StreamTypeHLS    StreamType = "HLS"
)

// Valid reports whether the stream type is one of the known values.
func (s StreamType) Valid() bool {
	switch s {
	case StreamTypeDirect, StreamTypeCDN, StreamTypeHLS:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of a streaming session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "ACTIVE"
	SessionPaused  SessionStatus = "PAUSED"
	SessionEnded   SessionStatus = "ENDED"
	SessionExpired SessionStatus = "EXPIRED"
)

// Terminal reports whether the status can never transition again.
func (s SessionStatus) Terminal() bool {
	return s == SessionEnded || s == SessionExpired
}

// CanTransitionTo enforces the session state machine:
// ACTIVE -> {PAUSED, ENDED, EXPIRED}, PAUSED -> {ACTIVE, ENDED, EXPIRED}.
// Terminal states never re-open.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case SessionActive:
		return next == SessionPaused || next == SessionEnded || next == SessionExpired
	case SessionPaused:
		return next == SessionActive || next == SessionEnded || next == SessionExpired
	}
	return false
}

// StreamingSession is one active playback stream. Sessions are exclusively
// owned by the session store; callers receive copies.
type StreamingSession struct {
	ID         string        `json:"sessionId"`
	UserID     string        `json:"userId"`
	SongID     string        `json:"songId"`
	DeviceID   string        `json:"deviceId"`
	DeviceName string        `json:"deviceName,omitempty"`
	IPAddress  string        `json:"ipAddress,omitempty"`
	UserAgent  string        `json:"userAgent,omitempty"`
	Quality    int           `json:"quality"`
	StreamType StreamType    `json:"streamType"`
	Status     SessionStatus `json:"status"`

	StartedAt       time.Time  `json:"startedAt"`
	LastHeartbeatAt time.Time  `json:"lastHeartbeatAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`

	// Cumulative counters. Monotonically non-decreasing for the session's
	// lifetime; out-of-order updates that would decrease one are ignored.
	StreamedSeconds     int64 `json:"streamedSeconds"`
	StreamedBytes       int64 `json:"streamedBytes"`
	BufferingEvents     int64 `json:"bufferingEvents"`
	BufferingDurationMs int64 `json:"bufferingDurationMs"`
}

// HeartbeatMetrics is the cumulative counter snapshot a client reports.
type HeartbeatMetrics struct {
	StreamedSeconds     int64 `json:"streamedSeconds"`
	StreamedBytes       int64 `json:"streamedBytes"`
	BufferingEvents     int64 `json:"bufferingEvents"`
	BufferingDurationMs int64 `json:"bufferingDurationMs"`
}

// ApplyHeartbeat merges a heartbeat into the session. Counters are merged by
// taking max so at-least-once client retries and reordered deliveries never
// decrease them. Returns true if any counter advanced.
func (s *StreamingSession) ApplyHeartbeat(m HeartbeatMetrics, receivedAt time.Time) bool {
	advanced := false
	if m.StreamedSeconds > s.StreamedSeconds {
		s.StreamedSeconds = m.StreamedSeconds
		advanced = true
	}
	if m.StreamedBytes > s.StreamedBytes {
		s.StreamedBytes = m.StreamedBytes
		advanced = true
	}
	if m.BufferingEvents > s.BufferingEvents {
		s.BufferingEvents = m.BufferingEvents
		advanced = true
	}
	if m.BufferingDurationMs > s.BufferingDurationMs {
		s.BufferingDurationMs = m.BufferingDurationMs
		advanced = true
	}
	if receivedAt.After(s.LastHeartbeatAt) {
		s.LastHeartbeatAt = receivedAt
	}
	return advanced
}

// StaleSince reports whether the session has missed heartbeats long enough
// to be considered expired at the given cutoff.
func (s *StreamingSession) StaleSince(cutoff time.Time) bool {
	return !s.Status.Terminal() && s.LastHeartbeatAt.Before(cutoff)
}
