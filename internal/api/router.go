// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/config"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/middleware"
)

// NewRouter assembles the HTTP surface. Health and metrics stay outside
// the auth fence; everything else requires a bearer token.
func NewRouter(handler *Handler, security config.SecurityConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: security.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", handler.Health)
		r.Get("/live", handler.HealthLive)
		r.Get("/ready", handler.HealthReady)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if !security.RateLimitDisabled {
			r.Use(httprate.LimitByIP(security.RateLimitReqs, security.RateLimitWindow))
		}
		r.Use(middleware.PrometheusMetrics)
		r.Use(handler.Authenticate)

		r.Post("/stream/start", handler.StreamStart)
		r.Post("/stream/heartbeat", handler.StreamHeartbeat)
		r.Post("/stream/change-song", handler.StreamChangeSong)
		r.Post("/stream/end", handler.StreamEnd)
		r.Get("/stream/sessions", handler.StreamSessions)

		r.Get("/stream/{songId}/master.m3u8", handler.HLSMaster)
		r.Get("/stream/{songId}/audio_{quality}kbps/playlist.m3u8", handler.HLSMedia)

		r.Post("/buffer/config", handler.BufferConfig)
		r.Post("/cdn/report", handler.CDNReport)
	})

	return r
}
