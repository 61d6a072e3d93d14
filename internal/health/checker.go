// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package health aggregates component checks into the liveness and
// readiness verdicts served by the API. Components register a check
// function; the checker fans them out with a shared deadline and folds
// the results into a single verdict.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/resilience"
)

// Status is a component or aggregate health verdict.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// worse returns the more severe of two statuses.
func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// ComponentHealth is one component's check result.
type ComponentHealth struct {
	Name    string      `json:"name"`
	Status  Status      `json:"status"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// Check produces a component's current health. Checks must honor the
// context deadline; a slow dependency must not stall the whole probe.
type Check func(ctx context.Context) ComponentHealth

// Report is the aggregate verdict with per-component breakdown.
type Report struct {
	Status     Status            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version,omitempty"`
	Components []ComponentHealth `json:"components"`
}

// Checker runs registered component checks.
type Checker struct {
	version string
	timeout time.Duration

	mu     sync.RWMutex
	checks []Check
}

// NewChecker creates a checker. timeout bounds each full readiness probe.
func NewChecker(version string, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{version: version, timeout: timeout}
}

// Register adds a component check. Safe to call during startup wiring;
// not intended for dynamic re-registration.
func (c *Checker) Register(check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, check)
}

// Live reports process liveness. It never consults dependencies: a
// process that can answer is alive, even with every upstream down.
func (c *Checker) Live() Report {
	return Report{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
}

// Ready runs every registered check concurrently and folds the results.
// Any unhealthy component makes the aggregate unhealthy; otherwise any
// degraded component makes it degraded.
func (c *Checker) Ready(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.mu.RLock()
	checks := make([]Check, len(c.checks))
	copy(checks, c.checks)
	c.mu.RUnlock()

	results := make([]ComponentHealth, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			results[i] = check(ctx)
		}(i, check)
	}
	wg.Wait()

	status := StatusHealthy
	for _, r := range results {
		status = worse(status, r.Status)
	}

	return Report{
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Version:    c.version,
		Components: results,
	}
}

// PingCheck adapts a Ping-style dependency into a Check. A ping failure
// marks the component unhealthy.
func PingCheck(name string, ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Name: name, Status: StatusUnhealthy, Message: err.Error()}
		}
		return ComponentHealth{Name: name, Status: StatusHealthy}
	}
}

// BreakerCheck folds circuit breaker snapshots into a component verdict:
// any OPEN breaker is unhealthy, any HALF_OPEN breaker is degraded. The
// optional details func overrides the default snapshot payload.
func BreakerCheck(name string, snapshots func() []resilience.Snapshot, details func() interface{}) Check {
	return func(ctx context.Context) ComponentHealth {
		snaps := snapshots()
		h := ComponentHealth{Name: name, Status: StatusHealthy, Details: snaps}
		if details != nil {
			h.Details = details()
		}
		for _, s := range snaps {
			switch s.State {
			case resilience.StateOpen.String():
				h.Status = StatusUnhealthy
				h.Message = fmt.Sprintf("circuit breaker %s is open", s.Name)
				return h
			case resilience.StateHalfOpen.String():
				h.Status = StatusDegraded
				h.Message = fmt.Sprintf("circuit breaker %s is half-open", s.Name)
			}
		}
		return h
	}
}
