// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package hls

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/logging"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/metrics"
)

// CachedGenerator fronts a Generator with a Redis manifest cache.
// Playlists are cacheable by (songId, quality, tier class) because
// generation is deterministic; singleflight collapses concurrent misses
// for the same key into one generation. A nil Redis client disables
// caching and every call generates directly.
type CachedGenerator struct {
	gen   *Generator
	redis *redis.Client
	ttl   time.Duration
	group singleflight.Group
}

// NewCachedGenerator wraps gen with a cache. client may be nil.
func NewCachedGenerator(gen *Generator, client *redis.Client, ttl time.Duration) *CachedGenerator {
	return &CachedGenerator{gen: gen, redis: client, ttl: ttl}
}

// FreeMaxBitrate returns the free-tier variant cap.
func (c *CachedGenerator) FreeMaxBitrate() int {
	return c.gen.freeMaxBitrate
}

// GenerateMaster returns the cached master playlist or generates it.
func (c *CachedGenerator) GenerateMaster(ctx context.Context, songID string, premium bool) (string, error) {
	key := fmt.Sprintf("hls:master:%s:%s", songID, tierClass(premium))
	return c.cached(ctx, key, func() (string, error) {
		return c.gen.GenerateMaster(ctx, songID, premium)
	})
}

// GenerateMedia returns the cached media playlist or generates it. Only
// default-segment playlists are cached; a caller-specific segment length
// bypasses the cache.
func (c *CachedGenerator) GenerateMedia(ctx context.Context, songID string, qualityKbps, segmentSec int) (string, error) {
	if segmentSec > 0 && segmentSec != c.gen.defaultSegmentSec {
		return c.gen.GenerateMedia(ctx, songID, qualityKbps, segmentSec)
	}
	key := fmt.Sprintf("hls:media:%s:%d", songID, qualityKbps)
	return c.cached(ctx, key, func() (string, error) {
		return c.gen.GenerateMedia(ctx, songID, qualityKbps, 0)
	})
}

// cached runs the lookup-generate-store cycle under singleflight. Cache
// failures degrade to direct generation; a broken cache must never break
// playback.
func (c *CachedGenerator) cached(ctx context.Context, key string, generate func() (string, error)) (string, error) {
	if c.redis == nil {
		return generate()
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		cached, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			metrics.ManifestCacheHits.Inc()
			return cached, nil
		}
		if err != redis.Nil {
			logging.Ctx(ctx).Warn().
				Str("component", "hls").
				Str("key", key).
				Err(err).
				Msg("Manifest cache lookup failed, generating directly")
		}
		metrics.ManifestCacheMisses.Inc()

		manifest, err := generate()
		if err != nil {
			return "", err
		}
		if err := c.redis.Set(ctx, key, manifest, c.ttl).Err(); err != nil {
			logging.Ctx(ctx).Warn().
				Str("component", "hls").
				Str("key", key).
				Err(err).
				Msg("Manifest cache store failed")
		}
		return manifest, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func tierClass(premium bool) string {
	if premium {
		return "premium"
	}
	return "free"
}
