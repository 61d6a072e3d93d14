// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/health"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/logging"
)

// Health handles GET /health: the full readiness report with component
// breakdown.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeReport(w, r, h.checker.Ready(r.Context()))
}

// HealthLive handles GET /health/live. A process that can answer is
// alive; no dependency is consulted.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeReport(w, r, h.checker.Live())
}

// HealthReady handles GET /health/ready.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	writeReport(w, r, h.checker.Ready(r.Context()))
}

// writeReport renders a health report. Degraded still serves traffic, so
// it answers 200; only unhealthy answers 503.
func writeReport(w http.ResponseWriter, r *http.Request, report health.Report) {
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to write health report")
	}
}
