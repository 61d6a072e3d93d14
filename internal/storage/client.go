// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package storage provides signed URL generation for audio objects and the
// resilient primary/fallback transport in front of the object stores.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
)

// Client is a single object store endpoint.
type Client interface {
	// Name identifies the endpoint in logs and health output.
	Name() string

	// SignedURL returns an expiring URL for the object at key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Exists reports whether the object at key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping checks endpoint reachability for readiness probes.
	Ping(ctx context.Context) error
}

// EndpointClient is a Client backed by an HTTP object store endpoint.
// Signing is local (HMAC over key and expiry); existence and reachability
// checks go over the wire.
type EndpointClient struct {
	name     string
	endpoint string
	bucket   string
	signer   *Signer
	http     *http.Client
	now      func() time.Time
}

// EndpointOptions configures an EndpointClient.
type EndpointOptions struct {
	// Name identifies the endpoint ("primary", "fallback").
	Name string

	// Endpoint is the base URL, e.g. "https://audio-primary.internal".
	Endpoint string

	// Bucket is the object namespace prefix.
	Bucket string

	// Signer signs object URLs.
	Signer *Signer

	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewEndpointClient builds a client for one object store endpoint.
func NewEndpointClient(opts EndpointOptions) *EndpointClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &EndpointClient{
		name:     opts.Name,
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		bucket:   opts.Bucket,
		signer:   opts.Signer,
		http:     httpClient,
		now:      clock,
	}
}

// Name implements Client.
func (c *EndpointClient) Name() string {
	return c.name
}

// objectURL returns the unsigned URL for key.
func (c *EndpointClient) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", c.endpoint, c.bucket, url.PathEscape(key))
}

// SignedURL implements Client. The signature is computed locally, so this
// never touches the network.
func (c *EndpointClient) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "object key must not be empty")
	}
	return c.objectURL(key) + "?" + c.signer.SignedQuery(key, ttl, c.now()), nil
}

// Exists implements Client with an HTTP HEAD request.
func (c *EndpointClient) Exists(ctx context.Context, key string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.objectURL(key), nil)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeInternal, "failed to build existence check", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, classifyTransportError(c.name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, apperrors.Newf(apperrors.CodeUnavailable, "object store %s returned status %d", c.name, resp.StatusCode)
	}
}

// Ping implements Client. Any HTTP response, including 404, proves the
// endpoint is reachable.
func (c *EndpointClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint+"/", nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to build ping request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(c.name, err)
	}
	resp.Body.Close()
	return nil
}

// classifyTransportError maps transport failures into the error taxonomy:
// deadline problems become TIMEOUT, everything else UNAVAILABLE. Both are
// retryable.
func classifyTransportError(name string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.Wrap(apperrors.CodeTimeout, fmt.Sprintf("object store %s timed out", name), err)
	}
	return apperrors.Wrap(apperrors.CodeUnavailable, fmt.Sprintf("object store %s unreachable", name), err)
}
