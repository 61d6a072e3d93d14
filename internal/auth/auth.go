// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package auth validates bearer tokens and carries the caller's identity
// through request contexts. Token issuance lives in the accounts service;
// this service only verifies.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/config"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Tier   string
}

// Premium reports whether the identity's tier gets premium treatment.
func (id Identity) Premium() bool {
	return id.Tier == "premium" || id.Tier == "family"
}

// Claims is the token payload this service accepts.
type Claims struct {
	UserID string `json:"userId"`
	Tier   string `json:"tier"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a token verifier from the security configuration.
// The secret must be at least 32 bytes.
func NewVerifier(cfg config.SecurityConfig) (*Verifier, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return &Verifier{secret: []byte(cfg.JWTSecret)}, nil
}

// VerifyToken validates a token string and extracts the identity. All
// failures map to UNAUTHENTICATED; callers never learn whether the token
// was malformed, expired, or forged.
func (v *Verifier) VerifyToken(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnauthenticated, "invalid token", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "invalid token")
	}

	tier := claims.Tier
	if tier == "" {
		tier = "free"
	}
	return &Identity{UserID: claims.UserID, Tier: tier}, nil
}

// FromAuthorizationHeader extracts and verifies a "Bearer <token>" header.
func (v *Verifier) FromAuthorizationHeader(header string) (*Identity, error) {
	const prefix = "Bearer "
	if header == "" {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "missing authorization header")
	}
	if !strings.HasPrefix(header, prefix) {
		return nil, apperrors.New(apperrors.CodeUnauthenticated, "authorization header must use the Bearer scheme")
	}
	return v.VerifyToken(strings.TrimPrefix(header, prefix))
}

// IssueToken signs a token for an identity. Production tokens come from
// the accounts service; this exists for development and tests.
func (v *Verifier) IssueToken(userID, tier string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Tier:   tier,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity attaches the identity to a context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFrom returns the identity attached to a context, if any.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok
}
