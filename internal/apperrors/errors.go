// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package apperrors defines the tagged error kinds used across the streaming
// core. Every error surfaced to a caller carries a machine-readable code, a
// human-readable message, and optionally a field->messages map for validation
// failures. The retry policy and the HTTP layer both dispatch on the code.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error kind.
type Code string

// Error kinds. The set is closed: new kinds require a corresponding HTTP
// status mapping and a retryability decision.
const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConcurrentLimit  Code = "CONCURRENT_LIMIT"
	CodeExpired          Code = "EXPIRED"
	CodeCircuitOpen      Code = "CIRCUIT_OPEN"
	CodeTimeout          Code = "TIMEOUT"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeInternal         Code = "INTERNAL"
)

// Error is the structured error type for the streaming core.
type Error struct {
	Code    Code
	Message string

	// Fields carries per-field validation messages for INVALID_ARGUMENT.
	Fields map[string][]string

	// cause is the wrapped underlying error, if any.
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error with the same code. This lets
// callers match on kind without holding the exact instance:
//
//	errors.Is(err, apperrors.New(apperrors.CodeNotFound, ""))
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates an error of the given kind.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithFields attaches a field->messages map (validation errors).
func (e *Error) WithFields(fields map[string][]string) *Error {
	e.Fields = fields
	return e
}

// CodeOf extracts the error kind from an error chain.
// Unclassified errors report CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Retryable reports whether the error kind is transient and worth retrying.
// Only TIMEOUT and UNAVAILABLE qualify; everything else either reflects a
// caller mistake or a deliberate fast-fail (CIRCUIT_OPEN) that retrying
// would defeat.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeTimeout, CodeUnavailable:
		return true
	default:
		return false
	}
}

// httpStatus maps each error kind to its HTTP status code.
// CONCURRENT_LIMIT maps to 402 as an upsell signal per product decision.
var httpStatus = map[Code]int{
	CodeInvalidArgument:  http.StatusBadRequest,
	CodeUnauthenticated:  http.StatusUnauthorized,
	CodePermissionDenied: http.StatusForbidden,
	CodeNotFound:         http.StatusNotFound,
	CodeConcurrentLimit:  http.StatusPaymentRequired,
	CodeExpired:          http.StatusGone,
	CodeCircuitOpen:      http.StatusServiceUnavailable,
	CodeTimeout:          http.StatusGatewayTimeout,
	CodeUnavailable:      http.StatusServiceUnavailable,
	CodeInternal:         http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status code for an error chain.
func HTTPStatus(err error) int {
	if status, ok := httpStatus[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
