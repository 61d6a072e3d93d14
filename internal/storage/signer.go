// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
)

// Signer produces and verifies expiring signed object URLs. The signature
// covers the object key and the expiry timestamp, so a URL for one object
// cannot be replayed for another or extended by the client.
type Signer struct {
	secret []byte
}

// NewSigner creates a URL signer with the given HMAC secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// SignedQuery returns the query string carrying the expiry and signature
// for key, valid for ttl from now.
func (s *Signer) SignedQuery(key string, ttl time.Duration, now time.Time) string {
	expires := now.Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.signature(key, expires))
	return q.Encode()
}

// Verify checks the signature and expiry carried in query against key.
// Expired URLs fail with EXPIRED, tampered ones with PERMISSION_DENIED.
func (s *Signer) Verify(key string, query url.Values, now time.Time) error {
	expiresStr := query.Get("expires")
	sig := query.Get("sig")
	if expiresStr == "" || sig == "" {
		return apperrors.New(apperrors.CodePermissionDenied, "missing URL signature")
	}

	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return apperrors.New(apperrors.CodePermissionDenied, "malformed URL expiry")
	}

	want := s.signature(key, expires)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return apperrors.New(apperrors.CodePermissionDenied, "invalid URL signature")
	}
	if now.Unix() >= expires {
		return apperrors.New(apperrors.CodeExpired, "signed URL has expired")
	}
	return nil
}

// signature computes hex(HMAC-SHA256(secret, key + "\n" + expires)).
func (s *Signer) signature(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
