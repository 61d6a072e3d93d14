// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

// Package hls generates HLS playlists for catalog tracks. Generation is
// pure and byte-deterministic: identical inputs always produce identical
// documents, which both the cache layer and the tests rely on.
package hls

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/catalog"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/metrics"
)

const audioCodec = "mp4a.40.2"

// Generator renders master and media playlists from catalog metadata.
type Generator struct {
	catalog           catalog.Repository
	freeMaxBitrate    int
	defaultSegmentSec int
}

// NewGenerator creates a playlist generator. freeMaxBitrate caps the
// variants free users see; defaultSegmentSec is used when the caller has
// no buffer configuration to override it.
func NewGenerator(cat catalog.Repository, freeMaxBitrate, defaultSegmentSec int) *Generator {
	return &Generator{
		catalog:           cat,
		freeMaxBitrate:    freeMaxBitrate,
		defaultSegmentSec: defaultSegmentSec,
	}
}

// FreeMaxBitrate returns the free-tier variant cap.
func (g *Generator) FreeMaxBitrate() int {
	return g.freeMaxBitrate
}

// GenerateMaster renders the master playlist for a song: one media
// playlist reference per available quality, ascending by bitrate. Free
// users get only the variants at or below the free bitrate cap.
func (g *Generator) GenerateMaster(ctx context.Context, songID string, premium bool) (string, error) {
	song, err := g.catalog.Song(ctx, songID)
	if err != nil {
		return "", err
	}

	qualities := filterQualities(song.Qualities, premium, g.freeMaxBitrate)
	if len(qualities) == 0 {
		return "", apperrors.Newf(apperrors.CodeNotFound, "no playable qualities for song %s", songID)
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, q := range qualities {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d,CODECS=%q\n", q*1000, audioCodec)
		fmt.Fprintf(&b, "audio_%dkbps/playlist.m3u8\n", q)
	}

	metrics.ManifestGenerations.WithLabelValues("master").Inc()
	return b.String(), nil
}

// GenerateMedia renders the media playlist for one quality of a song.
// segmentSec <= 0 selects the default segment duration. Unknown songs and
// qualities fail with NOT_FOUND.
func (g *Generator) GenerateMedia(ctx context.Context, songID string, qualityKbps, segmentSec int) (string, error) {
	song, err := g.catalog.Song(ctx, songID)
	if err != nil {
		return "", err
	}
	if !hasQuality(song.Qualities, qualityKbps) {
		return "", apperrors.Newf(apperrors.CodeNotFound, "song %s has no %d kbps rendition", songID, qualityKbps)
	}
	if segmentSec <= 0 {
		segmentSec = g.defaultSegmentSec
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", segmentSec)
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")

	remaining := song.DurationSec
	for index := 0; remaining > 0; index++ {
		d := segmentSec
		if remaining < segmentSec {
			d = remaining
		}
		fmt.Fprintf(&b, "#EXTINF:%d.0,\n", d)
		fmt.Fprintf(&b, "segment-%05d.ts\n", index)
		remaining -= d
	}
	b.WriteString("#EXT-X-ENDLIST\n")

	metrics.ManifestGenerations.WithLabelValues("media").Inc()
	return b.String(), nil
}

// filterQualities sorts ascending and applies the free-tier cap. The
// input is copied, never mutated, so generation stays free of side
// effects on catalog data.
func filterQualities(qualities []int, premium bool, freeMax int) []int {
	out := make([]int, 0, len(qualities))
	for _, q := range qualities {
		if premium || q <= freeMax {
			out = append(out, q)
		}
	}
	sort.Ints(out)
	return out
}

func hasQuality(qualities []int, want int) bool {
	for _, q := range qualities {
		if q == want {
			return true
		}
	}
	return false
}
