// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package api provides the HTTP handlers and routing for the streaming
// core.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/logging"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/middleware"
)

// Response is the JSON envelope every endpoint returns.
type Response struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Error    *APIError   `json:"error,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// APIError is the wire form of a failure.
type APIError struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// Metadata carries per-response bookkeeping.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`
}

// respondJSON writes the envelope with proper headers.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, resp *Response) {
	resp.Metadata.Timestamp = time.Now().UTC()
	resp.Metadata.RequestID = middleware.GetRequestID(r.Context())

	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(resp)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData writes a success envelope.
func respondData(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	respondJSON(w, r, status, &Response{Status: "ok", Data: data})
}

// respondError maps an error to its HTTP status and envelope. Internal
// messages never leak: anything unclassified reports a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.CodeOf(err)
	status := apperrors.HTTPStatus(err)

	apiErr := &APIError{Code: string(code), Message: "internal error"}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		apiErr.Message = appErr.Message
		apiErr.Fields = appErr.Fields
	}

	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().
			Str("code", string(code)).
			Err(err).
			Msg("Request failed")
	} else {
		logging.Ctx(r.Context()).Debug().
			Str("code", string(code)).
			Str("message", apiErr.Message).
			Msg("Request rejected")
	}

	respondJSON(w, r, status, &Response{Status: "error", Error: apiErr})
}

// decodeJSON parses the request body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "malformed request body", err)
	}
	return nil
}
