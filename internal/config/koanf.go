// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/musify/config.yaml",
	"/etc/musify/config.yml",
}

// EnvPrefix namespaces every configuration environment variable.
const EnvPrefix = "MUSIFY_"

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = EnvPrefix + "CONFIG_PATH"

// defaultConfig returns the built-in defaults. The buffer strategy tables
// carry the product-chosen magic numbers; deployments may override them.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Streaming: StreamingConfig{
			HeartbeatTimeout:  90 * time.Second,
			JanitorInterval:   30 * time.Second,
			ConcurrentFree:    1,
			ConcurrentPremium: 5,
			ConcurrentFamily:  6,
			URLTTL:            time.Hour,
		},
		Buffer: BufferConfig{
			Bands: []BandwidthBand{
				{UpToKbps: 512, TargetSec: 30},
				{UpToKbps: 2048, TargetSec: 20},
				{UpToKbps: 10240, TargetSec: 15},
				{UpToKbps: 0, TargetSec: 10}, // catch-all
			},
			DeviceMultipliers: map[string]float64{
				"MOBILE":        1.2,
				"TABLET":        1.1,
				"DESKTOP":       1.0,
				"TV":            0.9,
				"SMART_SPEAKER": 1.3,
				"CAR":           1.5,
				"UNKNOWN":       1.2,
			},
			TargetMinSec:                 5,
			TargetMaxSec:                 60,
			PreloadPremiumMaxSec:         120,
			PreloadFreeMaxSec:            60,
			FreeMaxBitrate:               192,
			QualityLevels:                []int{64, 96, 128, 192, 256, 320},
			BitrateAdaptationIntervalSec: 10,
			PreloadHintLimit:             3,
		},
		Resilience: ResilienceConfig{
			FailureThreshold:   5,
			SuccessThreshold:   2,
			ResetTimeout:       60 * time.Second,
			HalfOpenProbeCount: 3,
			RetryMaxAttempts:   3,
			RetryInitialDelay:  100 * time.Millisecond,
			RetryMaxDelay:      5 * time.Second,
			RetryBackoffFactor: 2.0,
			CallTimeout:        10 * time.Second,
		},
		Storage: StorageConfig{
			PrimaryEndpoint:  "",
			FallbackEndpoint: "",
			Bucket:           "musify-audio",
			SigningSecret:    "",
			ProbeKey:         ".readiness-probe",
		},
		CDN: CDNConfig{
			Enabled: false,
			Domains: []string{},
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "127.0.0.1:6379",
			DB:      0,
		},
		Sessions: SessionsConfig{
			Path:     "/data/sessions",
			InMemory: false,
		},
		HLS: HLSConfig{
			DefaultSegmentSec: 6,
			ManifestCacheTTL:  5 * time.Minute,
		},
	}
}

// Load loads configuration with layered sources, precedence ENV > file >
// defaults, then validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are the paths parsed as comma-separated slices when they
// arrive as env var strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"cdn.domains",
}

// processSliceFields converts comma-separated env values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps MUSIFY_-prefixed environment variable names to
// config paths. Unprefixed or unmapped variables are skipped so random
// environment noise never pollutes the config.
func envTransformFunc(key string) string {
	if !strings.HasPrefix(key, EnvPrefix) {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

	envMappings := map[string]string{
		// Server
		"http_host":        "server.host",
		"http_port":        "server.port",
		"http_timeout":     "server.read_timeout",
		"shutdown_timeout": "server.shutdown_timeout",
		"environment":      "server.environment",

		// Security
		"jwt_secret":          "security.jwt_secret",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Streaming
		"heartbeat_timeout":  "streaming.heartbeat_timeout",
		"janitor_interval":   "streaming.janitor_interval",
		"concurrent_free":    "streaming.concurrent_free",
		"concurrent_premium": "streaming.concurrent_premium",
		"concurrent_family":  "streaming.concurrent_family",
		"url_ttl":            "streaming.url_ttl",

		// Resilience
		"circuit_failure_threshold": "resilience.failure_threshold",
		"circuit_success_threshold": "resilience.success_threshold",
		"circuit_reset_timeout":     "resilience.reset_timeout",
		"circuit_half_open_probes":  "resilience.half_open_probe_count",
		"retry_max_attempts":        "resilience.retry_max_attempts",
		"retry_initial_delay":       "resilience.retry_initial_delay",
		"retry_max_delay":           "resilience.retry_max_delay",
		"retry_backoff_factor":      "resilience.retry_backoff_factor",
		"call_timeout":              "resilience.call_timeout",

		// Storage
		"storage_primary_endpoint":  "storage.primary_endpoint",
		"storage_fallback_endpoint": "storage.fallback_endpoint",
		"storage_bucket":            "storage.bucket",
		"storage_signing_secret":    "storage.signing_secret",
		"storage_probe_key":         "storage.probe_key",

		// CDN
		"cdn_enabled": "cdn.enabled",
		"cdn_domains": "cdn.domains",

		// Redis manifest cache
		"redis_enabled":  "redis.enabled",
		"redis_addr":     "redis.addr",
		"redis_password": "redis.password",
		"redis_db":       "redis.db",

		// Session store
		"sessions_path":      "sessions.path",
		"sessions_in_memory": "sessions.in_memory",

		// HLS
		"hls_default_segment_sec": "hls.default_segment_sec",
		"hls_manifest_cache_ttl":  "hls.manifest_cache_ttl",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
