// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package config defines the application configuration and its koanf-based
// layered loading (defaults -> YAML file -> environment variables).
package config

import (
	"time"
)

// Config is the root configuration for the streaming core.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Streaming  StreamingConfig  `koanf:"streaming"`
	Buffer     BufferConfig     `koanf:"buffer"`
	Resilience ResilienceConfig `koanf:"resilience"`
	Storage    StorageConfig    `koanf:"storage"`
	CDN        CDNConfig        `koanf:"cdn"`
	Redis      RedisConfig      `koanf:"redis"`
	Sessions   SessionsConfig   `koanf:"sessions"`
	HLS        HLSConfig        `koanf:"hls"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// SecurityConfig holds auth and rate limiting settings.
// Token issuance is external; this service only validates bearer tokens.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StreamingConfig holds session lifecycle and concurrency-cap settings.
type StreamingConfig struct {
	// HeartbeatTimeout is how long a session may go without a heartbeat
	// before the janitor expires it.
	HeartbeatTimeout time.Duration `koanf:"heartbeat_timeout"`

	// JanitorInterval is the expiry scan period.
	JanitorInterval time.Duration `koanf:"janitor_interval"`

	// Concurrent stream caps per subscription tier.
	ConcurrentFree    int `koanf:"concurrent_free"`
	ConcurrentPremium int `koanf:"concurrent_premium"`
	ConcurrentFamily  int `koanf:"concurrent_family"`

	// URLTTL is the signed stream URL lifetime.
	URLTTL time.Duration `koanf:"url_ttl"`
}

// BufferConfig holds the buffer strategy tuning tables. These are product
// choices, not derived invariants, so they live in configuration.
type BufferConfig struct {
	// Bands maps ascending bandwidth thresholds (kbps) to base target
	// buffer seconds. A profile matches the first band whose threshold
	// exceeds its bandwidth; the last entry is the catch-all.
	Bands []BandwidthBand `koanf:"bands"`

	// DeviceMultipliers scales the base buffer per device class.
	DeviceMultipliers map[string]float64 `koanf:"device_multipliers"`

	TargetMinSec int `koanf:"target_min_sec"`
	TargetMaxSec int `koanf:"target_max_sec"`

	PreloadPremiumMaxSec int `koanf:"preload_premium_max_sec"`
	PreloadFreeMaxSec    int `koanf:"preload_free_max_sec"`

	// FreeMaxBitrate caps the ladder for free-tier users.
	FreeMaxBitrate int `koanf:"free_max_bitrate"`

	// QualityLevels is the ascending set of supported qualities (kbps).
	QualityLevels []int `koanf:"quality_levels"`

	BitrateAdaptationIntervalSec int `koanf:"bitrate_adaptation_interval_sec"`

	// PreloadHintLimit caps predictive preload hints per request.
	PreloadHintLimit int `koanf:"preload_hint_limit"`
}

// BandwidthBand pairs an exclusive upper bandwidth bound with a base
// target buffer. UpToKbps == 0 marks the catch-all band.
type BandwidthBand struct {
	UpToKbps  int `koanf:"up_to_kbps"`
	TargetSec int `koanf:"target_sec"`
}

// ResilienceConfig holds circuit breaker and retry settings shared by the
// storage and CDN transports.
type ResilienceConfig struct {
	FailureThreshold   int           `koanf:"failure_threshold"`
	SuccessThreshold   int           `koanf:"success_threshold"`
	ResetTimeout       time.Duration `koanf:"reset_timeout"`
	HalfOpenProbeCount int           `koanf:"half_open_probe_count"`

	RetryMaxAttempts   int           `koanf:"retry_max_attempts"`
	RetryInitialDelay  time.Duration `koanf:"retry_initial_delay"`
	RetryMaxDelay      time.Duration `koanf:"retry_max_delay"`
	RetryBackoffFactor float64       `koanf:"retry_backoff_factor"`

	// CallTimeout is the per-attempt deadline applied to outbound I/O.
	CallTimeout time.Duration `koanf:"call_timeout"`
}

// StorageConfig holds the primary and optional fallback object store
// endpoints and URL signing material.
type StorageConfig struct {
	PrimaryEndpoint  string `koanf:"primary_endpoint"`
	FallbackEndpoint string `koanf:"fallback_endpoint"`
	Bucket           string `koanf:"bucket"`
	SigningSecret    string `koanf:"signing_secret"`

	// ProbeKey is the token object checked by the readiness probe.
	ProbeKey string `koanf:"probe_key"`
}

// CDNConfig holds the CDN domain pool.
type CDNConfig struct {
	Enabled bool     `koanf:"enabled"`
	Domains []string `koanf:"domains"`
}

// RedisConfig holds the manifest cache connection settings.
type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// SessionsConfig holds the badger-backed session store settings.
type SessionsConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// HLSConfig holds manifest generation settings.
type HLSConfig struct {
	DefaultSegmentSec int           `koanf:"default_segment_sec"`
	ManifestCacheTTL  time.Duration `koanf:"manifest_cache_ttl"`
}

// LimitForTier returns the concurrent stream cap for a subscription tier.
// Unknown tiers get the free cap, the conservative choice.
func (c StreamingConfig) LimitForTier(tier string) int {
	switch tier {
	case "premium":
		return c.ConcurrentPremium
	case "family":
		return c.ConcurrentFamily
	default:
		return c.ConcurrentFree
	}
}
