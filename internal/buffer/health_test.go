// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package buffer

import (
	"math"
	"testing"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
)

func TestComputeHealthScore_FullBuffer(t *testing.T) {
	e := testEngine()
	score := e.ComputeHealthScore(models.BufferMetrics{
		CurrentBufferedSec: 24,
		TargetBufferSec:    24,
	})

	if math.Abs(score.Score-1.0) > 1e-9 {
		t.Errorf("Score = %f, want 1.0", score.Score)
	}
	if score.Status != models.HealthHealthy {
		t.Errorf("Status = %s, want HEALTHY", score.Status)
	}
	if len(score.Recommendations) != 0 {
		t.Errorf("Healthy score should carry no recommendations, got %v", score.Recommendations)
	}
}

func TestComputeHealthScore_ComponentWeights(t *testing.T) {
	e := testEngine()

	// Half-full buffer, 1 starvation event, 2s rebuffering:
	// 0.5*0.5 + 0.3*(1-1/3) + 0.2*(1-2/5) = 0.25 + 0.2 + 0.12 = 0.57.
	score := e.ComputeHealthScore(models.BufferMetrics{
		CurrentBufferedSec:         12,
		TargetBufferSec:            24,
		StarvationEventsLastMin:    1,
		RebufferDurationLastMinSec: 2,
	})

	if math.Abs(score.Score-0.57) > 1e-9 {
		t.Errorf("Score = %f, want 0.57", score.Score)
	}
	if score.Status != models.HealthCritical {
		t.Errorf("Status = %s, want CRITICAL", score.Status)
	}
}

func TestComputeHealthScore_StatusBands(t *testing.T) {
	tests := []struct {
		score float64
		want  models.HealthStatus
	}{
		{1.0, models.HealthHealthy},
		{0.8, models.HealthHealthy},
		{0.79, models.HealthWarning},
		{0.6, models.HealthWarning},
		{0.59, models.HealthCritical},
		{0.3, models.HealthCritical},
		{0.29, models.HealthPoor},
		{0.0, models.HealthPoor},
	}
	for _, tt := range tests {
		if got := statusBand(tt.score); got != tt.want {
			t.Errorf("statusBand(%f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestComputeHealthScore_ScoreAlwaysInUnitInterval(t *testing.T) {
	e := testEngine()
	extremes := []models.BufferMetrics{
		{},
		{CurrentBufferedSec: 1000, TargetBufferSec: 1},
		{StarvationEventsLastMin: 100, RebufferDurationLastMinSec: 600, TargetBufferSec: 24},
		{CurrentBufferedSec: 0.001, TargetBufferSec: 60, JitterMs: 10000},
	}
	for _, m := range extremes {
		score := e.ComputeHealthScore(m)
		if score.Score < 0 || score.Score > 1 {
			t.Errorf("Score for %+v = %f, want [0,1]", m, score.Score)
		}
		if statusBand(score.Score) != score.Status {
			t.Errorf("Status %s does not match band of score %f", score.Status, score.Score)
		}
	}
}

func TestComputeHealthScore_JitterRecommendation(t *testing.T) {
	e := testEngine()

	// Warm buffer but heavy jitter: 0.5*1 + 0.3*(2/3) + 0.2*0.6 = 0.82...
	// tune starvation to land in WARNING with jitter above 200.
	score := e.ComputeHealthScore(models.BufferMetrics{
		CurrentBufferedSec:         24,
		TargetBufferSec:            24,
		StarvationEventsLastMin:    2,
		RebufferDurationLastMinSec: 2,
		JitterMs:                   250,
	})

	if score.Status != models.HealthWarning {
		t.Fatalf("Status = %s, want WARNING (score %f)", score.Status, score.Score)
	}
	found := false
	for _, rec := range score.Recommendations {
		if rec == "increase target buffer by 30%" {
			found = true
		}
	}
	if !found {
		t.Errorf("Missing jitter recommendation in %v", score.Recommendations)
	}
}
