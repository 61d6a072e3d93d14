// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package config

import (
	"fmt"
	"sort"
)

// Validate checks cross-field consistency of the loaded configuration.
// It returns the first problem found; startup aborts on any error.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1,65535], got %d", c.Server.Port)
	}

	if c.Server.Environment == "production" && c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required in production")
	}
	if c.Server.Environment == "production" && c.Storage.SigningSecret == "" {
		return fmt.Errorf("storage.signing_secret is required in production")
	}

	if c.Streaming.HeartbeatTimeout <= 0 {
		return fmt.Errorf("streaming.heartbeat_timeout must be positive")
	}
	if c.Streaming.JanitorInterval <= 0 {
		return fmt.Errorf("streaming.janitor_interval must be positive")
	}
	if c.Streaming.JanitorInterval > c.Streaming.HeartbeatTimeout {
		return fmt.Errorf("streaming.janitor_interval (%s) must not exceed streaming.heartbeat_timeout (%s)",
			c.Streaming.JanitorInterval, c.Streaming.HeartbeatTimeout)
	}
	if c.Streaming.ConcurrentFree < 1 || c.Streaming.ConcurrentPremium < 1 || c.Streaming.ConcurrentFamily < 1 {
		return fmt.Errorf("streaming concurrency caps must be at least 1")
	}
	if c.Streaming.URLTTL <= 0 {
		return fmt.Errorf("streaming.url_ttl must be positive")
	}

	if err := c.Buffer.validate(); err != nil {
		return err
	}

	if c.Resilience.FailureThreshold < 1 {
		return fmt.Errorf("resilience.failure_threshold must be at least 1")
	}
	if c.Resilience.HalfOpenProbeCount < 1 {
		return fmt.Errorf("resilience.half_open_probe_count must be at least 1")
	}
	if c.Resilience.SuccessThreshold < 1 || c.Resilience.SuccessThreshold > c.Resilience.HalfOpenProbeCount {
		return fmt.Errorf("resilience.success_threshold must be in [1, half_open_probe_count]")
	}
	if c.Resilience.RetryMaxAttempts < 1 {
		return fmt.Errorf("resilience.retry_max_attempts must be at least 1")
	}
	if c.Resilience.RetryBackoffFactor < 1.0 {
		return fmt.Errorf("resilience.retry_backoff_factor must be at least 1.0")
	}

	if c.CDN.Enabled && len(c.CDN.Domains) == 0 {
		return fmt.Errorf("cdn.domains must not be empty when cdn.enabled is true")
	}

	if c.HLS.DefaultSegmentSec < 2 || c.HLS.DefaultSegmentSec > 10 {
		return fmt.Errorf("hls.default_segment_sec must be in [2,10], got %d", c.HLS.DefaultSegmentSec)
	}

	return nil
}

// validate checks the buffer strategy tables.
func (c *BufferConfig) validate() error {
	if len(c.Bands) == 0 {
		return fmt.Errorf("buffer.bands must not be empty")
	}
	last := len(c.Bands) - 1
	for i, band := range c.Bands {
		if band.TargetSec <= 0 {
			return fmt.Errorf("buffer.bands[%d].target_sec must be positive", i)
		}
		if i < last && band.UpToKbps <= 0 {
			return fmt.Errorf("buffer.bands[%d].up_to_kbps must be positive (only the last band may be the catch-all)", i)
		}
		if i > 0 && i < last && band.UpToKbps <= c.Bands[i-1].UpToKbps {
			return fmt.Errorf("buffer.bands thresholds must be strictly ascending")
		}
	}
	if c.Bands[last].UpToKbps != 0 {
		return fmt.Errorf("buffer.bands must end with a catch-all band (up_to_kbps=0)")
	}

	for _, device := range []string{"MOBILE", "TABLET", "DESKTOP", "TV", "SMART_SPEAKER", "CAR", "UNKNOWN"} {
		if _, ok := c.DeviceMultipliers[device]; !ok {
			return fmt.Errorf("buffer.device_multipliers missing entry for %s", device)
		}
	}

	if c.TargetMinSec < 1 || c.TargetMaxSec <= c.TargetMinSec {
		return fmt.Errorf("buffer target clamp invalid: [%d,%d]", c.TargetMinSec, c.TargetMaxSec)
	}

	if len(c.QualityLevels) == 0 {
		return fmt.Errorf("buffer.quality_levels must not be empty")
	}
	if !sort.IntsAreSorted(c.QualityLevels) {
		return fmt.Errorf("buffer.quality_levels must be ascending")
	}

	if c.PreloadHintLimit < 1 {
		return fmt.Errorf("buffer.preload_hint_limit must be at least 1")
	}

	return nil
}
