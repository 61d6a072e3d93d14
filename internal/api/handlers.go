// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package api

import (
	"net/http"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/auth"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/buffer"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/cdn"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/health"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/hls"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/session"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/validation"
)

// Handler bundles the service dependencies behind the HTTP surface.
type Handler struct {
	sessions  *session.Controller
	engine    *buffer.Engine
	manifests *hls.CachedGenerator
	cdn       *cdn.Router // nil when CDN delivery is disabled
	checker   *health.Checker
	verifier  *auth.Verifier
}

// NewHandler creates the API handler.
func NewHandler(sessions *session.Controller, engine *buffer.Engine, manifests *hls.CachedGenerator, cdnRouter *cdn.Router, checker *health.Checker, verifier *auth.Verifier) *Handler {
	return &Handler{
		sessions:  sessions,
		engine:    engine,
		manifests: manifests,
		cdn:       cdnRouter,
		checker:   checker,
		verifier:  verifier,
	}
}

// Authenticate verifies the bearer token and attaches the identity to
// the request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.verifier.FromAuthorizationHeader(r.Header.Get("Authorization"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
	})
}

// identity returns the authenticated caller. The auth middleware runs
// before every handler that calls this; a missing identity is a wiring
// bug surfaced as UNAUTHENTICATED rather than a panic.
func identity(r *http.Request) (*auth.Identity, error) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "missing identity")
	}
	return id, nil
}

// startStreamResponse is the admission response body.
type startStreamResponse struct {
	SessionID    string                      `json:"sessionId"`
	SignedURL    string                      `json:"signedUrl"`
	ManifestURL  string                      `json:"manifestUrl,omitempty"`
	BufferConfig *models.BufferConfiguration `json:"bufferConfig"`
	PreloadHints []models.PreloadHint        `json:"preloadHints,omitempty"`
	ExpiresAt    time.Time                   `json:"expiresAt"`
}

// StreamStart handles POST /stream/start.
func (h *Handler) StreamStart(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req StartStreamRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.sessions.Start(r.Context(), session.StartRequest{
		UserID:     id.UserID,
		Tier:       id.Tier,
		SongID:     req.SongID,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		DeviceType: models.DeviceType(req.DeviceType),
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Quality:    req.Quality,
		StreamType: models.StreamType(req.StreamType),
		Network:    req.NetworkProfile,
		PlaylistID: req.PlaylistID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, r, http.StatusCreated, &startStreamResponse{
		SessionID:    result.Session.ID,
		SignedURL:    result.SignedURL,
		ManifestURL:  result.ManifestURL,
		BufferConfig: result.BufferConfig,
		PreloadHints: result.PreloadHints,
		ExpiresAt:    result.ExpiresAt,
	})
}

// heartbeatResponse is the heartbeat acknowledgement body.
type heartbeatResponse struct {
	OK            bool                        `json:"ok"`
	HealthScore   *models.BufferHealthScore   `json:"healthScore,omitempty"`
	UpdatedConfig *models.BufferConfiguration `json:"updatedConfig,omitempty"`
}

// StreamHeartbeat handles POST /stream/heartbeat.
func (h *Handler) StreamHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req HeartbeatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.sessions.Heartbeat(r.Context(), req.SessionID, id.UserID, models.HeartbeatMetrics{
		StreamedSeconds:     req.StreamedSeconds,
		StreamedBytes:       req.StreamedBytes,
		BufferingEvents:     req.BufferingEvents,
		BufferingDurationMs: req.BufferingDurationMs,
	}, req.BufferMetrics)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, r, http.StatusOK, &heartbeatResponse{
		OK:            true,
		HealthScore:   result.Health,
		UpdatedConfig: result.UpdatedConfig,
	})
}

// StreamChangeSong handles POST /stream/change-song.
func (h *Handler) StreamChangeSong(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req ChangeSongRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := h.sessions.ChangeSong(r.Context(), req.SessionID, id.UserID, req.SongID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, updated)
}

// StreamEnd handles POST /stream/end.
func (h *Handler) StreamEnd(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req EndStreamRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.sessions.End(r.Context(), req.SessionID, id.UserID); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]bool{"ok": true})
}

// StreamSessions handles GET /stream/sessions: the caller's ACTIVE and
// PAUSED sessions with device metadata.
func (h *Handler) StreamSessions(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	sessions, err := h.sessions.ListActive(r.Context(), id.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// CDNReport handles POST /cdn/report: delivery outcome feedback feeding
// the per-domain breakers.
func (h *Handler) CDNReport(w http.ResponseWriter, r *http.Request) {
	if _, err := identity(r); err != nil {
		respondError(w, r, err)
		return
	}
	if h.cdn == nil {
		respondError(w, r, apperrors.New(apperrors.CodeNotFound, "CDN delivery is not enabled"))
		return
	}

	var req CDNReportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, r, err)
		return
	}

	h.cdn.ReportDelivery(req.Domain, req.Success)
	respondData(w, r, http.StatusOK, map[string]bool{"ok": true})
}
