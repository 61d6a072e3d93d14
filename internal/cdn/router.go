// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package cdn routes stream URLs across a pool of CDN domains. Each domain
// carries its own circuit breaker, fed by delivery reports from clients;
// rotation skips domains whose breaker is open, and when every domain is
// down URLs fall back to the origin object store.
package cdn

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/logging"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/metrics"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/resilience"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/storage"
)

// Origin is the subset of the object store the router falls back to.
type Origin interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Router resolves object keys to CDN URLs with breaker-aware rotation.
type Router struct {
	domains  []string
	breakers []*resilience.Breaker[string]
	signer   *storage.Signer
	origin   Origin

	// cursor advances round-robin across resolutions.
	cursor atomic.Uint64
}

// NewRouter builds a router over the given domain pool. Every domain gets
// a breaker with the shared settings; Name is overridden per domain.
func NewRouter(domains []string, settings resilience.Settings, signer *storage.Signer, origin Origin) *Router {
	r := &Router{
		domains:  domains,
		breakers: make([]*resilience.Breaker[string], len(domains)),
		signer:   signer,
		origin:   origin,
	}
	for i, domain := range domains {
		s := settings
		s.Name = "cdn-" + domain
		s.OnStateChange = func(name string, from, to resilience.State) {
			logging.Warn().
				Str("component", "cdn").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("CDN breaker state changed")
			metrics.RecordBreakerTransition(name, from.String(), to.String(), float64(to))
		}
		r.breakers[i] = resilience.NewBreaker[string](s)
	}
	metrics.CDNDomainsAvailable.Set(float64(len(domains)))
	return r
}

// ResolveURL returns a signed URL for key on the next available CDN
// domain. When no domain is available it falls back to the origin store;
// if that also fails, the caller gets the origin's error.
func (r *Router) ResolveURL(ctx context.Context, key string, ttl time.Duration, now time.Time) (string, error) {
	if key == "" {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "object key must not be empty")
	}

	if domain, ok := r.nextAvailable(); ok {
		return r.domainURL(domain, key, ttl, now), nil
	}

	logging.Ctx(ctx).Warn().
		Str("component", "cdn").
		Str("key", key).
		Msg("All CDN domains unavailable, serving from origin")
	metrics.CDNOriginFallbacks.Inc()
	return r.origin.SignedURL(ctx, key, ttl)
}

// ReportDelivery feeds a client delivery report into the domain's breaker.
// Reports for unknown domains are ignored; reports while the breaker is
// open are dropped (the reset timeout governs recovery, not stale reports).
func (r *Router) ReportDelivery(domain string, success bool) {
	for i, d := range r.domains {
		if d != domain {
			continue
		}
		r.breakers[i].Execute(func() (string, error) {
			if success {
				return "", nil
			}
			return "", apperrors.Newf(apperrors.CodeUnavailable, "delivery failure reported for %s", domain)
		})
		metrics.CDNDomainsAvailable.Set(float64(len(r.AvailableDomains())))
		return
	}
}

// AvailableDomains returns the domains whose breaker is not open, in pool
// order. Used by the health surface.
func (r *Router) AvailableDomains() []string {
	available := make([]string, 0, len(r.domains))
	for i, domain := range r.domains {
		if r.breakers[i].State() != resilience.StateOpen {
			available = append(available, domain)
		}
	}
	return available
}

// Snapshots returns every domain breaker's state for health reporting.
func (r *Router) Snapshots() []resilience.Snapshot {
	snaps := make([]resilience.Snapshot, len(r.breakers))
	for i, b := range r.breakers {
		snaps[i] = b.Snapshot()
	}
	return snaps
}

// nextAvailable picks the next non-open domain round-robin. The cursor
// advances once per resolution so healthy domains share the load evenly.
func (r *Router) nextAvailable() (string, bool) {
	if len(r.domains) == 0 {
		return "", false
	}
	start := r.cursor.Add(1)
	for i := 0; i < len(r.domains); i++ {
		idx := int((start + uint64(i)) % uint64(len(r.domains)))
		if r.breakers[idx].State() != resilience.StateOpen {
			return r.domains[idx], true
		}
	}
	return "", false
}

// domainURL builds the signed URL for key on a CDN domain.
func (r *Router) domainURL(domain, key string, ttl time.Duration, now time.Time) string {
	return fmt.Sprintf("https://%s/%s?%s", domain, url.PathEscape(key), r.signer.SignedQuery(key, ttl, now))
}
