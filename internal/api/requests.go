// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package api

import (
	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
)

// StartStreamRequest is the body of POST /stream/start.
type StartStreamRequest struct {
	SongID     string `json:"songId" validate:"required"`
	DeviceID   string `json:"deviceId" validate:"required"`
	DeviceName string `json:"deviceName" validate:"max=128"`
	DeviceType string `json:"deviceType" validate:"required,devicetype"`

	// Quality 0 defers to the server's recommendation.
	Quality    int    `json:"quality" validate:"omitempty,quality"`
	StreamType string `json:"streamType" validate:"required,streamtype"`

	NetworkProfile models.NetworkProfile `json:"networkProfile" validate:"required"`

	PlaylistID string `json:"playlistId"`
}

// HeartbeatRequest is the body of POST /stream/heartbeat. Counters are
// cumulative; BufferMetrics is optional telemetry for health scoring.
type HeartbeatRequest struct {
	SessionID           string `json:"sessionId" validate:"required"`
	StreamedSeconds     int64  `json:"streamedSeconds" validate:"gte=0"`
	StreamedBytes       int64  `json:"streamedBytes" validate:"gte=0"`
	BufferingEvents     int64  `json:"bufferingEvents" validate:"gte=0"`
	BufferingDurationMs int64  `json:"bufferingDurationMs" validate:"gte=0"`

	BufferMetrics *models.BufferMetrics `json:"bufferMetrics,omitempty"`
}

// ChangeSongRequest is the body of POST /stream/change-song.
type ChangeSongRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	SongID    string `json:"songId" validate:"required"`
}

// EndStreamRequest is the body of POST /stream/end.
type EndStreamRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// BufferConfigRequest is the body of POST /buffer/config. BufferMetrics
// is optional; when present the response includes a health score.
type BufferConfigRequest struct {
	NetworkProfile models.NetworkProfile `json:"networkProfile" validate:"required"`
	DeviceType     string                `json:"deviceType" validate:"required,devicetype"`
	IsPremium      bool                  `json:"isPremium"`

	BufferMetrics *models.BufferMetrics `json:"bufferMetrics,omitempty"`
}

// CDNReportRequest is the body of POST /cdn/report: client-side delivery
// outcome feedback that drives the per-domain breakers.
type CDNReportRequest struct {
	Domain  string `json:"domain" validate:"required"`
	Success bool   `json:"success"`
}
