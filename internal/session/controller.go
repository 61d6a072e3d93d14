// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package session

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/buffer"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/catalog"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/config"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/logging"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/metrics"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
)

// userLockShards sizes the per-user mutex table. Locks shard by user ID
// hash; a shard collision only costs unnecessary serialization, never
// correctness.
const userLockShards = 64

// URLResolver turns an object key into a client-facing stream URL for
// the requested delivery mode.
type URLResolver interface {
	ResolveStreamURL(ctx context.Context, key string, streamType models.StreamType, ttl time.Duration) (string, error)
}

// StartRequest is the admission request for one new stream.
type StartRequest struct {
	UserID string
	Tier   string

	SongID     string
	DeviceID   string
	DeviceName string
	DeviceType models.DeviceType
	IPAddress  string
	UserAgent  string

	// Quality 0 lets the buffer engine's recommendation pick.
	Quality    int
	StreamType models.StreamType
	Network    models.NetworkProfile

	// PlaylistID is set when the user plays from a playlist; it feeds
	// preload prediction.
	PlaylistID string
}

// premium reports whether the tier gets premium treatment.
func (r StartRequest) premium() bool {
	return r.Tier == "premium" || r.Tier == "family"
}

// StartResult is the admission response.
type StartResult struct {
	Session      *models.StreamingSession
	SignedURL    string
	ManifestURL  string // HLS only
	BufferConfig *models.BufferConfiguration
	PreloadHints []models.PreloadHint
	ExpiresAt    time.Time
}

// HeartbeatResult reports the outcome of one heartbeat.
type HeartbeatResult struct {
	// Advanced is false when the heartbeat was a replay or arrived out
	// of order and no counter moved.
	Advanced bool

	// Health is set when the heartbeat carried buffer telemetry.
	Health *models.BufferHealthScore

	// UpdatedConfig is set when degraded health warrants a mid-stream
	// buffer adjustment.
	UpdatedConfig *models.BufferConfiguration
}

// Controller drives the session lifecycle. All operations are safe for
// concurrent use; concurrency-cap enforcement serializes per user.
type Controller struct {
	store     Store
	catalog   catalog.Repository
	engine    *buffer.Engine
	predictor *buffer.Predictor
	urls      URLResolver
	streaming config.StreamingConfig

	userLocks [userLockShards]sync.Mutex
	clock     func() time.Time
	newID     func() string
}

// ControllerOptions wires a Controller.
type ControllerOptions struct {
	Store     Store
	Catalog   catalog.Repository
	Engine    *buffer.Engine
	Predictor *buffer.Predictor
	URLs      URLResolver
	Streaming config.StreamingConfig

	// Clock and NewID override time.Now and uuid generation, for tests.
	Clock func() time.Time
	NewID func() string
}

// NewController creates a session controller.
func NewController(opts ControllerOptions) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	return &Controller{
		store:     opts.Store,
		catalog:   opts.Catalog,
		engine:    opts.Engine,
		predictor: opts.Predictor,
		urls:      opts.URLs,
		streaming: opts.Streaming,
		clock:     clock,
		newID:     newID,
	}
}

// Start admits a new streaming session. It fails with CONCURRENT_LIMIT
// when the user's tier cap is reached; the check-and-insert runs under a
// per-user lock so two racing starts cannot both be admitted. The lock
// is never held across storage-signing or CDN I/O.
func (c *Controller) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	if !req.StreamType.Valid() {
		return nil, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown stream type %q", req.StreamType)
	}

	bufferCfg, err := c.engine.ComputeConfig(req.Network, req.DeviceType, req.premium())
	if err != nil {
		metrics.SessionsRejected.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	song, err := c.catalog.Song(ctx, req.SongID)
	if err != nil {
		metrics.SessionsRejected.WithLabelValues("not_found").Inc()
		return nil, err
	}

	quality, err := selectQuality(song, req.Quality, bufferCfg.RecommendedQuality)
	if err != nil {
		metrics.SessionsRejected.WithLabelValues("not_found").Inc()
		return nil, err
	}

	now := c.clock()
	session := &models.StreamingSession{
		ID:              c.newID(),
		UserID:          req.UserID,
		SongID:          req.SongID,
		DeviceID:        req.DeviceID,
		DeviceName:      req.DeviceName,
		IPAddress:       req.IPAddress,
		UserAgent:       req.UserAgent,
		Quality:         quality,
		StreamType:      req.StreamType,
		Status:          models.SessionActive,
		StartedAt:       now,
		LastHeartbeatAt: now,
	}

	if err := c.admit(ctx, session, req.Tier); err != nil {
		return nil, err
	}

	signedURL, err := c.urls.ResolveStreamURL(ctx, song.ObjectKey(quality), req.StreamType, c.streaming.URLTTL)
	if err != nil {
		// Admission already happened; release the slot before failing.
		c.rollbackAdmission(ctx, session.ID)
		return nil, err
	}

	result := &StartResult{
		Session:      session,
		SignedURL:    signedURL,
		BufferConfig: bufferCfg,
		PreloadHints: c.predictor.Predict(ctx, req.UserID, req.SongID, req.PlaylistID),
		ExpiresAt:    now.Add(c.streaming.URLTTL),
	}
	if req.StreamType == models.StreamTypeHLS {
		result.ManifestURL = fmt.Sprintf("/api/v1/stream/%s/master.m3u8", req.SongID)
	}

	metrics.SessionsStarted.WithLabelValues(string(req.StreamType), req.Tier).Inc()
	metrics.SessionsActive.Inc()
	logging.Ctx(ctx).Info().
		Str("component", "session").
		Str("session_id", session.ID).
		Str("user_id", req.UserID).
		Str("song_id", req.SongID).
		Int("quality", quality).
		Str("stream_type", string(req.StreamType)).
		Msg("Session started")
	return result, nil
}

// admit performs the cap check and insert under the user's lock.
func (c *Controller) admit(ctx context.Context, session *models.StreamingSession, tier string) error {
	lock := c.userLock(session.UserID)
	lock.Lock()
	defer lock.Unlock()

	active, err := c.store.ListByUser(ctx, session.UserID, models.SessionActive, models.SessionPaused)
	if err != nil {
		return err
	}
	limit := c.streaming.LimitForTier(tier)
	if len(active) >= limit {
		metrics.SessionsRejected.WithLabelValues("concurrent_limit").Inc()
		return apperrors.Newf(apperrors.CodeConcurrentLimit,
			"concurrent stream limit reached (%d of %d)", len(active), limit)
	}
	return c.store.Create(ctx, session)
}

// rollbackAdmission ends a session whose start failed after admission.
func (c *Controller) rollbackAdmission(ctx context.Context, sessionID string) {
	_, err := c.store.Mutate(ctx, sessionID, func(s *models.StreamingSession) error {
		now := c.clock()
		s.Status = models.SessionEnded
		s.EndedAt = &now
		return nil
	})
	if err != nil {
		logging.Error().
			Str("component", "session").
			Str("session_id", sessionID).
			Err(err).
			Msg("Failed to roll back admission")
	}
}

// Heartbeat merges a client heartbeat into the session. Counters merge
// by max so replays and reordering never decrease them.
func (c *Controller) Heartbeat(ctx context.Context, sessionID, userID string, m models.HeartbeatMetrics, telemetry *models.BufferMetrics) (*HeartbeatResult, error) {
	start := time.Now()
	defer func() {
		metrics.HeartbeatDuration.Observe(time.Since(start).Seconds())
	}()

	receivedAt := c.clock()
	advanced := false
	session, err := c.store.Mutate(ctx, sessionID, func(s *models.StreamingSession) error {
		if s.UserID != userID {
			return apperrors.New(apperrors.CodePermissionDenied, "session belongs to another user")
		}
		if s.Status.Terminal() {
			return apperrors.Newf(apperrors.CodeExpired, "session %s is no longer active", sessionID)
		}
		advanced = s.ApplyHeartbeat(m, receivedAt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !advanced {
		metrics.HeartbeatsStale.Inc()
	}

	if err := c.store.AppendMetrics(ctx, sessionID, receivedAt, m); err != nil {
		// The merge already committed; a metrics-log failure is not
		// worth failing the heartbeat over.
		logging.Ctx(ctx).Warn().
			Str("component", "session").
			Str("session_id", sessionID).
			Err(err).
			Msg("Failed to append heartbeat metrics")
	}

	result := &HeartbeatResult{Advanced: advanced}
	if telemetry != nil {
		result.Health = c.engine.ComputeHealthScore(*telemetry)
		if result.Health.Status != models.HealthHealthy {
			result.UpdatedConfig = c.engine.ReinforceConfig(*telemetry, session.Quality)
		}
	}
	return result, nil
}

// ChangeSong atomically retargets the session to a new song. Counters
// carry over; the heartbeat clock restarts.
func (c *Controller) ChangeSong(ctx context.Context, sessionID, userID, newSongID string) (*models.StreamingSession, error) {
	song, err := c.catalog.Song(ctx, newSongID)
	if err != nil {
		return nil, err
	}

	return c.store.Mutate(ctx, sessionID, func(s *models.StreamingSession) error {
		if s.UserID != userID {
			return apperrors.New(apperrors.CodePermissionDenied, "session belongs to another user")
		}
		if s.Status.Terminal() {
			return apperrors.Newf(apperrors.CodeExpired, "session %s is no longer active", sessionID)
		}
		s.SongID = newSongID
		s.Quality = nearestQuality(song, s.Quality)
		s.LastHeartbeatAt = c.clock()
		return nil
	})
}

// End transitions the session to ENDED. Idempotent: ending a session
// that is already terminal succeeds without modification.
func (c *Controller) End(ctx context.Context, sessionID, userID string) error {
	ended := false
	_, err := c.store.Mutate(ctx, sessionID, func(s *models.StreamingSession) error {
		if s.UserID != userID {
			return apperrors.New(apperrors.CodePermissionDenied, "session belongs to another user")
		}
		if s.Status.Terminal() {
			return nil
		}
		now := c.clock()
		s.Status = models.SessionEnded
		s.EndedAt = &now
		ended = true
		return nil
	})
	if err != nil {
		return err
	}
	if ended {
		metrics.SessionsEnded.WithLabelValues("client").Inc()
		metrics.SessionsActive.Dec()
	}
	return nil
}

// ListActive returns the user's ACTIVE and PAUSED sessions.
func (c *Controller) ListActive(ctx context.Context, userID string) ([]*models.StreamingSession, error) {
	return c.store.ListByUser(ctx, userID, models.SessionActive, models.SessionPaused)
}

// userLock returns the mutex shard for a user.
func (c *Controller) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &c.userLocks[h.Sum32()%userLockShards]
}

// selectQuality resolves the session quality: an explicit request must
// exist in the song's renditions; zero picks the best rendition at or
// below the engine's recommendation.
func selectQuality(song *catalog.Song, requested, recommended int) (int, error) {
	if requested != 0 {
		for _, q := range song.Qualities {
			if q == requested {
				return requested, nil
			}
		}
		return 0, apperrors.Newf(apperrors.CodeNotFound, "song %s has no %d kbps rendition", song.ID, requested)
	}
	return nearestQuality(song, recommended), nil
}

// nearestQuality returns the best rendition at or below the wanted
// bitrate, or the lowest rendition when none qualifies.
func nearestQuality(song *catalog.Song, want int) int {
	best := 0
	lowest := 0
	for _, q := range song.Qualities {
		if lowest == 0 || q < lowest {
			lowest = q
		}
		if q <= want && q > best {
			best = q
		}
	}
	if best == 0 {
		return lowest
	}
	return best
}
