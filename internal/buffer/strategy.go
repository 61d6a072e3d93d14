// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package buffer implements the adaptive buffer strategy engine: pure
// computation of per-stream buffer configurations from network telemetry,
// health scoring of client-reported buffer metrics, and predictive
// preload hints from listening history.
package buffer

import (
	"math"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/config"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/metrics"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
)

// Engine computes buffer configurations and health scores. All methods
// are pure and safe for concurrent use; the tuning tables are read-only
// after construction.
type Engine struct {
	cfg config.BufferConfig
}

// NewEngine creates an engine over the given tuning tables.
func NewEngine(cfg config.BufferConfig) *Engine {
	return &Engine{cfg: cfg}
}

// ComputeConfig derives the buffering plan for one stream start. It is
// deterministic: identical inputs produce identical configurations. The
// only failure mode is an invalid network profile.
func (e *Engine) ComputeConfig(profile models.NetworkProfile, device models.DeviceType, premium bool) (*models.BufferConfiguration, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	device = device.Normalize()

	base := e.baseTarget(profile.BandwidthKbps)
	multiplier := e.cfg.DeviceMultipliers[string(device)] *
		jitterMultiplier(profile.JitterMs) *
		lossMultiplier(profile.PacketLossPct)

	target := clampInt(int(math.Round(float64(base)*multiplier)), e.cfg.TargetMinSec, e.cfg.TargetMaxSec)

	minBuf := maxInt(5, int(math.Round(float64(target)*0.5)))
	maxBuf := minInt(120, target*2)
	rebuffer := maxInt(2, int(math.Round(float64(target)*0.3)))

	preloadCap := e.cfg.PreloadFreeMaxSec
	if premium {
		preloadCap = e.cfg.PreloadPremiumMaxSec
	}

	minBitrate, startBitrate, maxBitrate := e.bitrateLadder(profile.BandwidthKbps, premium)

	cfg := &models.BufferConfiguration{
		MinBufferSec:         minBuf,
		TargetBufferSec:      target,
		MaxBufferSec:         maxBuf,
		PreloadSec:           minInt(preloadCap, maxBuf),
		SegmentSec:           clampInt(int(math.Round(float64(target)/4)), 2, 10),
		RebufferThresholdSec: rebuffer,

		AdaptiveBitrateEnabled:       true,
		MinBitrate:                   minBitrate,
		StartBitrate:                 startBitrate,
		MaxBitrate:                   maxBitrate,
		BitrateAdaptationIntervalSec: e.cfg.BitrateAdaptationIntervalSec,

		RecommendedQuality: e.recommendedQuality(startBitrate),
	}

	metrics.BufferConfigsComputed.WithLabelValues(string(device)).Inc()
	return cfg, nil
}

// baseTarget returns the band's base buffer for a bandwidth. The bands
// are ascending with a trailing catch-all.
func (e *Engine) baseTarget(bandwidthKbps int) int {
	for _, band := range e.cfg.Bands {
		if band.UpToKbps == 0 || bandwidthKbps < band.UpToKbps {
			return band.TargetSec
		}
	}
	return e.cfg.Bands[len(e.cfg.Bands)-1].TargetSec
}

// jitterMultiplier widens the buffer on jittery connections.
func jitterMultiplier(jitterMs float64) float64 {
	switch {
	case jitterMs < 50:
		return 1.0
	case jitterMs < 100:
		return 1.1
	case jitterMs < 200:
		return 1.3
	default:
		return 1.5
	}
}

// lossMultiplier widens the buffer on lossy connections: 1.0 up to 1%
// loss, then linear to 1.6 at 5% and above. Sub-percent loss is noise on
// wireless links and must not perturb the plan.
func lossMultiplier(lossPct float64) float64 {
	switch {
	case lossPct <= 1:
		return 1.0
	case lossPct >= 5:
		return 1.6
	default:
		return 1.0 + (lossPct-1)*0.15
	}
}

// bitrateLadder derives the min/start/max bitrates from bandwidth. Free
// tier caps the ceiling; the floor is lowered to the ceiling if the two
// cross on a fast connection with a free account.
func (e *Engine) bitrateLadder(bandwidthKbps int, premium bool) (minBitrate, startBitrate, maxBitrate int) {
	levels := e.cfg.QualityLevels
	lowest, highest := levels[0], levels[len(levels)-1]

	maxBitrate = minInt(highest, int(float64(bandwidthKbps)*0.75))
	if !premium {
		maxBitrate = minInt(maxBitrate, e.cfg.FreeMaxBitrate)
	}
	minBitrate = maxInt(lowest, int(float64(bandwidthKbps)*0.20))
	if minBitrate > maxBitrate {
		minBitrate = maxBitrate
	}
	startBitrate = clampInt(int(float64(bandwidthKbps)*0.50), minBitrate, maxBitrate)
	return minBitrate, startBitrate, maxBitrate
}

// recommendedQuality returns the greatest supported level not above the
// start bitrate, falling back to the lowest level.
func (e *Engine) recommendedQuality(startBitrate int) int {
	best := e.cfg.QualityLevels[0]
	for _, level := range e.cfg.QualityLevels {
		if level <= startBitrate {
			best = level
		}
	}
	return best
}

// ReinforceConfig derives a widened configuration from mid-stream buffer
// telemetry once health degrades. Bandwidth is unknown at heartbeat time,
// so the bitrate ladder pins to the session's current quality, stepping
// down one level when the client reported starvation.
func (e *Engine) ReinforceConfig(m models.BufferMetrics, currentQuality int) *models.BufferConfiguration {
	reported := m.TargetBufferSec
	if reported <= 0 {
		reported = e.cfg.TargetMinSec
	}
	target := clampInt(int(math.Round(float64(reported)*1.3)), e.cfg.TargetMinSec, e.cfg.TargetMaxSec)

	quality := currentQuality
	if m.StarvationEventsLastMin > 0 {
		quality = e.stepDown(currentQuality)
	}

	return &models.BufferConfiguration{
		MinBufferSec:         maxInt(5, int(math.Round(float64(target)*0.5))),
		TargetBufferSec:      target,
		MaxBufferSec:         minInt(120, target*2),
		PreloadSec:           minInt(e.cfg.PreloadFreeMaxSec, minInt(120, target*2)),
		SegmentSec:           clampInt(int(math.Round(float64(target)/4)), 2, 10),
		RebufferThresholdSec: maxInt(2, int(math.Round(float64(target)*0.3))),

		AdaptiveBitrateEnabled:       true,
		MinBitrate:                   e.cfg.QualityLevels[0],
		StartBitrate:                 quality,
		MaxBitrate:                   maxInt(quality, currentQuality),
		BitrateAdaptationIntervalSec: e.cfg.BitrateAdaptationIntervalSec,

		RecommendedQuality: quality,
	}
}

// stepDown returns the next quality level below q, or q if already at
// the bottom of the ladder.
func (e *Engine) stepDown(q int) int {
	below := 0
	for _, level := range e.cfg.QualityLevels {
		if level < q && level > below {
			below = level
		}
	}
	if below == 0 {
		return q
	}
	return below
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
