// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package main is the entry point for the Musify streaming core server.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load via Koanf v2 (defaults, config file,
//     environment variables)
//  2. Logging: zerolog per the configured level and format
//  3. Session store: BadgerDB (or in-memory for development)
//  4. Object storage: primary and optional fallback endpoints behind
//     circuit breakers with retry
//  5. CDN router: per-domain breakers with round-robin rotation
//  6. Manifest cache: Redis-backed HLS playlist cache (optional)
//  7. Supervisor tree: session janitor and HTTP server under suture
//
// Graceful shutdown runs on SIGINT and SIGTERM: the HTTP server drains
// in-flight requests, the janitor stops, the session store closes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/api"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/auth"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/buffer"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/catalog"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/cdn"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/config"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/health"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/history"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/hls"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/logging"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/metrics"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/resilience"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/session"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/storage"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/supervisor"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Musify streaming core")

	// Session store
	store, err := session.OpenBadgerStore(cfg.Sessions.Path, cfg.Sessions.InMemory)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()
	logging.Info().
		Str("path", cfg.Sessions.Path).
		Bool("in_memory", cfg.Sessions.InMemory).
		Msg("Session store opened")

	// Object storage behind breakers
	signer := storage.NewSigner(cfg.Storage.SigningSecret)
	breakerSettings := resilience.Settings{
		FailureThreshold: cfg.Resilience.FailureThreshold,
		SuccessThreshold: cfg.Resilience.SuccessThreshold,
		ResetTimeout:     cfg.Resilience.ResetTimeout,
		HalfOpenProbes:   cfg.Resilience.HalfOpenProbeCount,
	}
	retryPolicy := resilience.RetryPolicy{
		MaxAttempts:  cfg.Resilience.RetryMaxAttempts,
		InitialDelay: cfg.Resilience.RetryInitialDelay,
		MaxDelay:     cfg.Resilience.RetryMaxDelay,
		Multiplier:   cfg.Resilience.RetryBackoffFactor,
		OnRetry: func(attempt int, err error) {
			metrics.RetryAttempts.WithLabelValues("storage").Inc()
		},
	}

	var fallback storage.Client
	if cfg.Storage.FallbackEndpoint != "" {
		fallback = storage.NewEndpointClient(storage.EndpointOptions{
			Name:     "fallback",
			Endpoint: cfg.Storage.FallbackEndpoint,
			Bucket:   cfg.Storage.Bucket,
			Signer:   signer,
		})
	}
	objectStore := storage.NewResilientStore(storage.ResilientOptions{
		Primary: storage.NewEndpointClient(storage.EndpointOptions{
			Name:     "primary",
			Endpoint: cfg.Storage.PrimaryEndpoint,
			Bucket:   cfg.Storage.Bucket,
			Signer:   signer,
		}),
		Fallback:    fallback,
		Breaker:     breakerSettings,
		Retry:       retryPolicy,
		CallTimeout: cfg.Resilience.CallTimeout,
	})

	// CDN router
	var cdnRouter *cdn.Router
	if cfg.CDN.Enabled && len(cfg.CDN.Domains) > 0 {
		cdnRouter = cdn.NewRouter(cfg.CDN.Domains, breakerSettings, signer, objectStore)
		logging.Info().
			Int("domains", len(cfg.CDN.Domains)).
			Msg("CDN routing enabled")
	}

	// Manifest cache
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logging.Warn().Err(err).Msg("Redis unreachable, manifest caching degraded")
		}
	}

	// Catalog and history are external services; the in-process
	// repositories back single-node deployments and development.
	songCatalog := catalog.NewMemoryRepository()
	listenHistory := history.NewMemoryRepository()

	engine := buffer.NewEngine(cfg.Buffer)
	predictor := buffer.NewPredictor(songCatalog, listenHistory, cfg.Buffer.PreloadHintLimit, nil)

	manifests := hls.NewCachedGenerator(
		hls.NewGenerator(songCatalog, cfg.Buffer.FreeMaxBitrate, cfg.HLS.DefaultSegmentSec),
		redisClient, cfg.HLS.ManifestCacheTTL)

	controller := session.NewController(session.ControllerOptions{
		Store:     store,
		Catalog:   songCatalog,
		Engine:    engine,
		Predictor: predictor,
		URLs: &streamURLResolver{
			storage: objectStore,
			cdn:     cdnRouter,
		},
		Streaming: cfg.Streaming,
	})

	verifier, err := auth.NewVerifier(cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token verifier")
	}

	// Health checks
	checker := health.NewChecker(version, 5*time.Second)
	checker.Register(health.PingCheck("session-store", store.Ping))
	checker.Register(health.PingCheck("object-storage", objectStore.Ping))
	checker.Register(health.PingCheck("storage-probe", objectStore.ReadinessProbe(cfg.Storage.ProbeKey)))
	checker.Register(health.BreakerCheck("storage-breakers", objectStore.Snapshots, nil))
	if cdnRouter != nil {
		checker.Register(health.BreakerCheck("cdn", cdnRouter.Snapshots, func() interface{} {
			return map[string]interface{}{
				"availableCdnDomains": cdnRouter.AvailableDomains(),
				"breakers":            cdnRouter.Snapshots(),
			}
		}))
	}

	handler := api.NewHandler(controller, engine, manifests, cdnRouter, checker, verifier)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Security),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervisor tree: janitor in the worker layer, HTTP in the API layer.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddWorker(session.NewJanitor(store, cfg.Streaming.HeartbeatTimeout, cfg.Streaming.JanitorInterval, nil))
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := tree.ServeBackground(ctx)
	logging.Info().
		Str("addr", server.Addr).
		Msg("Server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree exited")
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing Redis client")
		}
	}
	logging.Info().Msg("Shutdown complete")
}

// streamURLResolver maps a session's delivery mode to the transport that
// issues its URL: CDN streams go through the domain router, everything
// else signs against object storage directly.
type streamURLResolver struct {
	storage *storage.ResilientStore
	cdn     *cdn.Router
}

func (r *streamURLResolver) ResolveStreamURL(ctx context.Context, key string, streamType models.StreamType, ttl time.Duration) (string, error) {
	if streamType == models.StreamTypeCDN && r.cdn != nil {
		return r.cdn.ResolveURL(ctx, key, ttl, time.Now())
	}
	return r.storage.SignedURL(ctx, key, ttl)
}
