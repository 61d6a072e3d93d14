// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package hls

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/catalog"
)

func testCatalog() *catalog.MemoryRepository {
	cat := catalog.NewMemoryRepository()
	cat.AddSong(&catalog.Song{
		ID:          "song-1",
		Title:       "Test Track",
		DurationSec: 200,
		Qualities:   []int{320, 96, 192, 128}, // deliberately unsorted
	})
	return cat
}

func TestGenerateMaster_PremiumAllQualitiesAscending(t *testing.T) {
	g := NewGenerator(testCatalog(), 192, 6)

	manifest, err := g.GenerateMaster(context.Background(), "song-1", true)
	if err != nil {
		t.Fatalf("GenerateMaster failed: %v", err)
	}

	want := "#EXTM3U\n" +
		"#EXT-X-VERSION:3\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=96000,CODECS=\"mp4a.40.2\"\n" +
		"audio_96kbps/playlist.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=128000,CODECS=\"mp4a.40.2\"\n" +
		"audio_128kbps/playlist.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=192000,CODECS=\"mp4a.40.2\"\n" +
		"audio_192kbps/playlist.m3u8\n" +
		"#EXT-X-STREAM-INF:BANDWIDTH=320000,CODECS=\"mp4a.40.2\"\n" +
		"audio_320kbps/playlist.m3u8\n"
	if manifest != want {
		t.Errorf("Master playlist mismatch:\ngot:\n%s\nwant:\n%s", manifest, want)
	}
}

func TestGenerateMaster_FreeTierFilter(t *testing.T) {
	g := NewGenerator(testCatalog(), 192, 6)

	manifest, err := g.GenerateMaster(context.Background(), "song-1", false)
	if err != nil {
		t.Fatalf("GenerateMaster failed: %v", err)
	}

	if strings.Contains(manifest, "320") {
		t.Errorf("Free master contains 320 kbps variant:\n%s", manifest)
	}
	for _, q := range []string{"96000", "128000", "192000"} {
		if !strings.Contains(manifest, "BANDWIDTH="+q) {
			t.Errorf("Free master missing %s variant:\n%s", q, manifest)
		}
	}

	// Ascending order: 96 before 128 before 192.
	if !(strings.Index(manifest, "96000") < strings.Index(manifest, "128000") &&
		strings.Index(manifest, "128000") < strings.Index(manifest, "192000")) {
		t.Errorf("Variants not ascending:\n%s", manifest)
	}
}

func TestGenerateMaster_PermutationIndependent(t *testing.T) {
	permutations := [][]int{
		{96, 128, 192, 320},
		{320, 192, 128, 96},
		{128, 320, 96, 192},
	}
	var first string
	for i, qualities := range permutations {
		cat := catalog.NewMemoryRepository()
		cat.AddSong(&catalog.Song{ID: "song-1", DurationSec: 200, Qualities: qualities})
		g := NewGenerator(cat, 192, 6)

		manifest, err := g.GenerateMaster(context.Background(), "song-1", true)
		if err != nil {
			t.Fatalf("GenerateMaster failed: %v", err)
		}
		if i == 0 {
			first = manifest
		} else if manifest != first {
			t.Errorf("Quality order %v changed the output", qualities)
		}
	}
}

func TestGenerateMaster_UnknownSong(t *testing.T) {
	g := NewGenerator(testCatalog(), 192, 6)
	_, err := g.GenerateMaster(context.Background(), "missing", true)
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Errorf("Code = %s, want NOT_FOUND", apperrors.CodeOf(err))
	}
}

func TestGenerateMedia_SegmentLayout(t *testing.T) {
	g := NewGenerator(testCatalog(), 192, 6)

	manifest, err := g.GenerateMedia(context.Background(), "song-1", 192, 0)
	if err != nil {
		t.Fatalf("GenerateMedia failed: %v", err)
	}

	// 200s at 6s segments: 33 full segments and a 2s tail.
	lines := strings.Split(strings.TrimSuffix(manifest, "\n"), "\n")
	if lines[0] != "#EXTM3U" || lines[1] != "#EXT-X-VERSION:3" {
		t.Errorf("Bad header: %v", lines[:2])
	}
	if lines[2] != "#EXT-X-TARGETDURATION:6" {
		t.Errorf("Target duration line = %s", lines[2])
	}
	if lines[3] != "#EXT-X-MEDIA-SEQUENCE:0" {
		t.Errorf("Media sequence line = %s", lines[3])
	}
	if lines[len(lines)-1] != "#EXT-X-ENDLIST" {
		t.Errorf("Missing ENDLIST, last line = %s", lines[len(lines)-1])
	}

	segments := 0
	for _, line := range lines {
		if strings.HasSuffix(line, ".ts") {
			segments++
		}
	}
	if segments != 34 {
		t.Errorf("Segments = %d, want 34", segments)
	}
	if !strings.Contains(manifest, "#EXTINF:2.0,\nsegment-00033.ts") {
		t.Errorf("Missing 2s tail segment:\n%s", manifest)
	}
	if !strings.Contains(manifest, "segment-00000.ts") {
		t.Error("Segment numbering must start at 0")
	}
}

func TestGenerateMedia_SegmentOverride(t *testing.T) {
	g := NewGenerator(testCatalog(), 192, 6)

	manifest, err := g.GenerateMedia(context.Background(), "song-1", 192, 10)
	if err != nil {
		t.Fatalf("GenerateMedia failed: %v", err)
	}
	if !strings.Contains(manifest, "#EXT-X-TARGETDURATION:10") {
		t.Errorf("Override ignored:\n%s", manifest)
	}
}

func TestGenerateMedia_UnknownQuality(t *testing.T) {
	g := NewGenerator(testCatalog(), 192, 6)
	_, err := g.GenerateMedia(context.Background(), "song-1", 256, 0)
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Errorf("Code = %s, want NOT_FOUND", apperrors.CodeOf(err))
	}
}

func TestGenerateMedia_Deterministic(t *testing.T) {
	g := NewGenerator(testCatalog(), 192, 6)
	first, err := g.GenerateMedia(context.Background(), "song-1", 128, 0)
	if err != nil {
		t.Fatalf("GenerateMedia failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _ := g.GenerateMedia(context.Background(), "song-1", 128, 0)
		if again != first {
			t.Fatal("GenerateMedia not byte-deterministic")
		}
	}
}

func TestCachedGenerator_ServesFromCache(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	cat := testCatalog()
	cached := NewCachedGenerator(NewGenerator(cat, 192, 6), client, 5*time.Minute)

	first, err := cached.GenerateMaster(context.Background(), "song-1", true)
	if err != nil {
		t.Fatalf("GenerateMaster failed: %v", err)
	}

	// Mutate the catalog; a cache hit must still return the old bytes.
	cat.AddSong(&catalog.Song{ID: "song-1", DurationSec: 200, Qualities: []int{64}})
	second, err := cached.GenerateMaster(context.Background(), "song-1", true)
	if err != nil {
		t.Fatalf("GenerateMaster failed: %v", err)
	}
	if second != first {
		t.Error("Expected cached manifest on second call")
	}

	// Expiry brings the new catalog state into view.
	srv.FastForward(10 * time.Minute)
	third, _ := cached.GenerateMaster(context.Background(), "song-1", true)
	if third == first {
		t.Error("Expected regenerated manifest after TTL expiry")
	}
}

func TestCachedGenerator_TiersCachedSeparately(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	cached := NewCachedGenerator(NewGenerator(testCatalog(), 192, 6), client, 5*time.Minute)

	premium, _ := cached.GenerateMaster(context.Background(), "song-1", true)
	free, _ := cached.GenerateMaster(context.Background(), "song-1", false)
	if premium == free {
		t.Error("Premium and free masters must not share a cache entry")
	}
	if !strings.Contains(premium, "320000") || strings.Contains(free, "320000") {
		t.Error("Tier filtering lost through the cache")
	}
}

func TestCachedGenerator_NilClientGeneratesDirectly(t *testing.T) {
	cached := NewCachedGenerator(NewGenerator(testCatalog(), 192, 6), nil, 5*time.Minute)
	manifest, err := cached.GenerateMedia(context.Background(), "song-1", 96, 0)
	if err != nil {
		t.Fatalf("GenerateMedia failed: %v", err)
	}
	if !strings.HasPrefix(manifest, "#EXTM3U") {
		t.Errorf("Unexpected manifest: %s", manifest)
	}
}
