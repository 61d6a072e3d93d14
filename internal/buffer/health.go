// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package buffer

import (
	"github.com/Rostanic20/Musify-Backend-sub000/internal/metrics"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
)

// Weights and normalization ceilings for health scoring.
const (
	weightBufferLevel = 0.5
	weightStarvation  = 0.3
	weightRebuffer    = 0.2

	// Three starvation events or five rebuffered seconds in a minute
	// zero out the respective component.
	starvationCeiling  = 3.0
	rebufferCeilingSec = 5.0
)

// ComputeHealthScore scores client-reported buffer telemetry. The score
// is a weighted sum of three normalized components; the status is the
// band containing the score. This function is total: any metrics value
// yields a score in [0,1].
func (e *Engine) ComputeHealthScore(m models.BufferMetrics) *models.BufferHealthScore {
	target := float64(m.TargetBufferSec)
	if target <= 0 {
		target = float64(e.cfg.TargetMinSec)
	}

	bufferLevel := clamp01(m.CurrentBufferedSec / target)
	starvation := 1 - clamp01(float64(m.StarvationEventsLastMin)/starvationCeiling)
	rebuffer := 1 - clamp01(m.RebufferDurationLastMinSec/rebufferCeilingSec)

	score := weightBufferLevel*bufferLevel + weightStarvation*starvation + weightRebuffer*rebuffer

	result := &models.BufferHealthScore{
		Score:            score,
		Status:           statusBand(score),
		BufferLevelScore: bufferLevel,
		StarvationScore:  starvation,
		RebufferScore:    rebuffer,
	}
	result.Recommendations = recommendations(result, m)

	metrics.BufferHealthEvaluations.WithLabelValues(string(result.Status)).Inc()
	return result
}

// statusBand maps a score to its health band.
func statusBand(score float64) models.HealthStatus {
	switch {
	case score >= 0.8:
		return models.HealthHealthy
	case score >= 0.6:
		return models.HealthWarning
	case score >= 0.3:
		return models.HealthCritical
	default:
		return models.HealthPoor
	}
}

// recommendations derives rule-based client guidance. Rules are evaluated
// in a fixed order so the output is deterministic.
func recommendations(score *models.BufferHealthScore, m models.BufferMetrics) []string {
	if score.Status == models.HealthHealthy {
		return nil
	}

	var recs []string
	if score.Status == models.HealthWarning && m.JitterMs > 200 {
		recs = append(recs, "increase target buffer by 30%")
	}
	if score.BufferLevelScore < 0.5 {
		recs = append(recs, "pause playback until the buffer reaches its target")
	}
	if m.StarvationEventsLastMin > 0 {
		recs = append(recs, "step down one quality level")
	}
	if score.RebufferScore < 0.6 {
		recs = append(recs, "lower the start bitrate for the next track")
	}
	return recs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
