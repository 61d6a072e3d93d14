// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package api

import (
	"net/http"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/validation"
)

// bufferConfigTTL bounds how long a computed configuration stays valid.
// Network conditions drift; clients re-request after expiry.
const bufferConfigTTL = 5 * time.Minute

// bufferConfigResponse is the body of POST /buffer/config.
type bufferConfigResponse struct {
	Configuration *models.BufferConfiguration `json:"configuration"`
	HealthScore   *models.BufferHealthScore   `json:"healthScore,omitempty"`
	ExpiresAt     time.Time                   `json:"expiresAt"`
}

// BufferConfig handles POST /buffer/config: a standalone configuration
// computation outside any session, used by clients before playback and
// after network changes.
func (h *Handler) BufferConfig(w http.ResponseWriter, r *http.Request) {
	if _, err := identity(r); err != nil {
		respondError(w, r, err)
		return
	}

	var req BufferConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		respondError(w, r, err)
		return
	}

	cfg, err := h.engine.ComputeConfig(req.NetworkProfile, models.DeviceType(req.DeviceType), req.IsPremium)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := &bufferConfigResponse{
		Configuration: cfg,
		ExpiresAt:     time.Now().UTC().Add(bufferConfigTTL),
	}
	if req.BufferMetrics != nil {
		resp.HealthScore = h.engine.ComputeHealthScore(*req.BufferMetrics)
	}
	respondData(w, r, http.StatusOK, resp)
}
