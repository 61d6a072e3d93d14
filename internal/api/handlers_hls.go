// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/logging"
)

const manifestContentType = "application/vnd.apple.mpegurl"

// HLSMaster handles GET /stream/{songId}/master.m3u8. The variant set
// depends on the caller's tier, so manifests are never shared across
// tiers.
func (h *Handler) HLSMaster(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	songID := chi.URLParam(r, "songId")

	manifest, err := h.manifests.GenerateMaster(r.Context(), songID, id.Premium())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeManifest(w, r, manifest)
}

// HLSMedia handles GET /stream/{songId}/audio_{quality}kbps/playlist.m3u8.
func (h *Handler) HLSMedia(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	songID := chi.URLParam(r, "songId")

	quality, err := strconv.Atoi(chi.URLParam(r, "quality"))
	if err != nil {
		respondError(w, r, apperrors.New(apperrors.CodeInvalidArgument, "quality must be an integer bitrate"))
		return
	}

	// Free-tier callers only see capped variants in the master; fetching
	// a premium variant directly is a permission problem, not a 404.
	if !id.Premium() && quality > h.manifests.FreeMaxBitrate() {
		respondError(w, r, apperrors.New(apperrors.CodePermissionDenied, "variant requires a premium subscription"))
		return
	}

	manifest, err := h.manifests.GenerateMedia(r.Context(), songID, quality, 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeManifest(w, r, manifest)
}

func writeManifest(w http.ResponseWriter, r *http.Request, manifest string) {
	w.Header().Set("Content-Type", manifestContentType)
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := w.Write([]byte(manifest)); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to write manifest")
	}
}
