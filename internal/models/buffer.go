// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package models

// BufferConfiguration is the immutable buffering plan computed server-side
// for one stream start. All durations are seconds, all bitrates kbps.
//
// Invariants: MinBufferSec <= TargetBufferSec <= MaxBufferSec,
// RebufferThresholdSec < TargetBufferSec, MinBitrate <= StartBitrate <= MaxBitrate.
type BufferConfiguration struct {
	MinBufferSec         int  `json:"minBufferSec"`
	TargetBufferSec      int  `json:"targetBufferSec"`
	MaxBufferSec         int  `json:"maxBufferSec"`
	PreloadSec           int  `json:"preloadSec"`
	SegmentSec           int  `json:"segmentSec"`
	RebufferThresholdSec int  `json:"rebufferThresholdSec"`

	AdaptiveBitrateEnabled       bool `json:"adaptiveBitrateEnabled"`
	MinBitrate                   int  `json:"minBitrate"`
	StartBitrate                 int  `json:"startBitrate"`
	MaxBitrate                   int  `json:"maxBitrate"`
	BitrateAdaptationIntervalSec int  `json:"bitrateAdaptationIntervalSec"`

	RecommendedQuality int `json:"recommendedQuality"`
}

// HealthStatus bands a buffer health score.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthWarning  HealthStatus = "WARNING"
	HealthCritical HealthStatus = "CRITICAL"
	HealthPoor     HealthStatus = "POOR"
)

// BufferHealthScore is the scored assessment of client-reported buffer
// metrics, with component breakdown and actionable recommendations.
type BufferHealthScore struct {
	Score  float64      `json:"score"`
	Status HealthStatus `json:"status"`

	BufferLevelScore float64 `json:"bufferLevelScore"`
	StarvationScore  float64 `json:"starvationScore"`
	RebufferScore    float64 `json:"rebufferScore"`

	Recommendations []string `json:"recommendations,omitempty"`
}

// BufferMetrics is a client-reported buffer telemetry snapshot used for
// health scoring and opportunistic reconfiguration.
type BufferMetrics struct {
	CurrentBufferedSec        float64 `json:"currentBufferedSec" validate:"gte=0"`
	TargetBufferSec           int     `json:"targetBufferSec" validate:"gt=0"`
	StarvationEventsLastMin   int     `json:"starvationEventsLastMin" validate:"gte=0"`
	RebufferDurationLastMinSec float64 `json:"rebufferDurationLastMinSec" validate:"gte=0"`
	JitterMs                  float64 `json:"jitterMs" validate:"gte=0"`
}
