// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Rostanic20/Musify-Backend-sub000/internal/auth"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/buffer"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/catalog"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/config"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/health"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/history"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/hls"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/models"
	"github.com/Rostanic20/Musify-Backend-sub000/internal/session"
)

type staticResolver struct{}

func (staticResolver) ResolveStreamURL(_ context.Context, key string, _ models.StreamType, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + key, nil
}

type apiFixture struct {
	server   *httptest.Server
	verifier *auth.Verifier
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	cat := catalog.NewMemoryRepository()
	cat.AddSong(&catalog.Song{ID: "song-1", DurationSec: 180, Qualities: []int{96, 128, 192, 320}})

	bufferCfg := config.BufferConfig{
		Bands: []config.BandwidthBand{
			{UpToKbps: 512, TargetSec: 30},
			{UpToKbps: 2048, TargetSec: 20},
			{UpToKbps: 0, TargetSec: 10},
		},
		DeviceMultipliers: map[string]float64{
			"MOBILE": 1.2, "TABLET": 1.1, "DESKTOP": 1.0, "TV": 0.9,
			"SMART_SPEAKER": 1.3, "CAR": 1.5, "UNKNOWN": 1.2,
		},
		TargetMinSec:                 5,
		TargetMaxSec:                 60,
		PreloadPremiumMaxSec:         120,
		PreloadFreeMaxSec:            60,
		FreeMaxBitrate:               192,
		QualityLevels:                []int{64, 96, 128, 192, 256, 320},
		BitrateAdaptationIntervalSec: 10,
		PreloadHintLimit:             3,
	}
	engine := buffer.NewEngine(bufferCfg)

	controller := session.NewController(session.ControllerOptions{
		Store:     session.NewMemoryStore(),
		Catalog:   cat,
		Engine:    engine,
		Predictor: buffer.NewPredictor(cat, history.NewMemoryRepository(), 3, nil),
		URLs:      staticResolver{},
		Streaming: config.StreamingConfig{
			HeartbeatTimeout:  90 * time.Second,
			JanitorInterval:   30 * time.Second,
			ConcurrentFree:    1,
			ConcurrentPremium: 5,
			ConcurrentFamily:  6,
			URLTTL:            time.Hour,
		},
	})

	manifests := hls.NewCachedGenerator(hls.NewGenerator(cat, 192, 6), nil, time.Minute)

	verifier, err := auth.NewVerifier(config.SecurityConfig{JWTSecret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	handler := NewHandler(controller, engine, manifests, nil, health.NewChecker("test", time.Second), verifier)
	server := httptest.NewServer(NewRouter(handler, config.SecurityConfig{RateLimitDisabled: true}))
	t.Cleanup(server.Close)

	return &apiFixture{server: server, verifier: verifier}
}

func (f *apiFixture) token(t *testing.T, userID, tier string) string {
	t.Helper()
	token, err := f.verifier.IssueToken(userID, tier, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) (*http.Response, *Response) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var envelope Response
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
	}
	return resp, &envelope
}

const startBody = `{
	"songId": "song-1",
	"deviceId": "dev-1",
	"deviceType": "MOBILE",
	"streamType": "DIRECT",
	"networkProfile": {"bandwidthKbps": 1500, "latencyMs": 80, "jitterMs": 25, "packetLossPct": 0.5}
}`

func TestStreamStart_Succeeds(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "u1", "premium")

	resp, envelope := f.do(t, http.MethodPost, "/api/v1/stream/start", token, startBody)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Status = %d, want 201", resp.StatusCode)
	}
	if envelope.Status != "ok" {
		t.Errorf("Envelope status = %s", envelope.Status)
	}
	if envelope.Metadata.RequestID == "" {
		t.Error("Missing request ID in metadata")
	}

	data := envelope.Data.(map[string]interface{})
	if data["sessionId"] == "" {
		t.Error("Missing sessionId")
	}
	if !strings.HasPrefix(data["signedUrl"].(string), "https://signed.example.com/") {
		t.Errorf("signedUrl = %v", data["signedUrl"])
	}
	cfg := data["bufferConfig"].(map[string]interface{})
	if cfg["targetBufferSec"].(float64) != 24 {
		t.Errorf("targetBufferSec = %v, want 24", cfg["targetBufferSec"])
	}
}

func TestStreamStart_RequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	resp, envelope := f.do(t, http.MethodPost, "/api/v1/stream/start", "", startBody)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Status = %d, want 401", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != "UNAUTHENTICATED" {
		t.Errorf("Error = %+v", envelope.Error)
	}
}

func TestStreamStart_ValidationFieldsReported(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "u1", "premium")

	body := `{"songId": "song-1", "deviceId": "dev-1", "deviceType": "HOLOGRAM", "streamType": "DIRECT",
		"networkProfile": {"bandwidthKbps": 1500}}`
	resp, envelope := f.do(t, http.MethodPost, "/api/v1/stream/start", token, body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", resp.StatusCode)
	}
	if envelope.Error.Code != "INVALID_ARGUMENT" {
		t.Errorf("Code = %s", envelope.Error.Code)
	}
	if len(envelope.Error.Fields["deviceType"]) == 0 {
		t.Errorf("Fields = %+v, want deviceType message", envelope.Error.Fields)
	}
}

func TestStreamStart_ConcurrentLimitIs402(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "u1", "free")

	if resp, _ := f.do(t, http.MethodPost, "/api/v1/stream/start", token, startBody); resp.StatusCode != http.StatusCreated {
		t.Fatalf("First start status = %d", resp.StatusCode)
	}
	resp, envelope := f.do(t, http.MethodPost, "/api/v1/stream/start", token, startBody)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("Status = %d, want 402", resp.StatusCode)
	}
	if envelope.Error.Code != "CONCURRENT_LIMIT" {
		t.Errorf("Code = %s", envelope.Error.Code)
	}
}

func TestHeartbeat_RoundTrip(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "u1", "premium")

	_, start := f.do(t, http.MethodPost, "/api/v1/stream/start", token, startBody)
	sessionID := start.Data.(map[string]interface{})["sessionId"].(string)

	body := `{"sessionId": "` + sessionID + `", "streamedSeconds": 30, "streamedBytes": 3000}`
	resp, envelope := f.do(t, http.MethodPost, "/api/v1/stream/heartbeat", token, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}
	if envelope.Data.(map[string]interface{})["ok"] != true {
		t.Errorf("Data = %+v", envelope.Data)
	}
}

func TestHeartbeat_OtherUsersSessionIs403(t *testing.T) {
	f := newAPIFixture(t)
	owner := f.token(t, "u1", "premium")
	intruder := f.token(t, "u2", "premium")

	_, start := f.do(t, http.MethodPost, "/api/v1/stream/start", owner, startBody)
	sessionID := start.Data.(map[string]interface{})["sessionId"].(string)

	body := `{"sessionId": "` + sessionID + `", "streamedSeconds": 10}`
	resp, envelope := f.do(t, http.MethodPost, "/api/v1/stream/heartbeat", intruder, body)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Status = %d, want 403", resp.StatusCode)
	}
	if envelope.Error.Code != "PERMISSION_DENIED" {
		t.Errorf("Code = %s", envelope.Error.Code)
	}
}

func TestStreamEnd_ThenSessionsEmpty(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "u1", "premium")

	_, start := f.do(t, http.MethodPost, "/api/v1/stream/start", token, startBody)
	sessionID := start.Data.(map[string]interface{})["sessionId"].(string)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/stream/end", token, `{"sessionId": "`+sessionID+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("End status = %d", resp.StatusCode)
	}

	_, list := f.do(t, http.MethodGet, "/api/v1/stream/sessions", token, "")
	sessions := list.Data.(map[string]interface{})["sessions"]
	if sessions != nil && len(sessions.([]interface{})) != 0 {
		t.Errorf("sessions = %+v, want empty", sessions)
	}
}

func TestHLSMaster_TierFiltering(t *testing.T) {
	f := newAPIFixture(t)

	premium := f.token(t, "u1", "premium")
	resp, _ := f.do(t, http.MethodGet, "/api/v1/stream/song-1/master.m3u8", premium, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != manifestContentType {
		t.Errorf("Content-Type = %s", ct)
	}

	free := f.token(t, "u2", "free")
	resp, envelope := f.do(t, http.MethodGet, "/api/v1/stream/song-1/audio_320kbps/playlist.m3u8", free, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Free 320kbps status = %d, want 403", resp.StatusCode)
	}
	if envelope.Error.Code != "PERMISSION_DENIED" {
		t.Errorf("Code = %s", envelope.Error.Code)
	}

	resp, _ = f.do(t, http.MethodGet, "/api/v1/stream/song-1/audio_128kbps/playlist.m3u8", free, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Free 128kbps status = %d, want 200", resp.StatusCode)
	}
}

func TestBufferConfig_WithOptionalHealthScore(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "u1", "free")

	body := `{"networkProfile": {"bandwidthKbps": 1500, "latencyMs": 80}, "deviceType": "DESKTOP", "isPremium": false}`
	resp, envelope := f.do(t, http.MethodPost, "/api/v1/buffer/config", token, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d, want 200", resp.StatusCode)
	}
	data := envelope.Data.(map[string]interface{})
	if data["configuration"] == nil {
		t.Error("Missing configuration")
	}
	if _, ok := data["healthScore"]; ok {
		t.Error("healthScore must be absent without metrics")
	}

	body = `{"networkProfile": {"bandwidthKbps": 1500, "latencyMs": 80}, "deviceType": "DESKTOP",
		"bufferMetrics": {"currentBufferedSec": 20, "targetBufferSec": 20}}`
	_, envelope = f.do(t, http.MethodPost, "/api/v1/buffer/config", token, body)
	score := envelope.Data.(map[string]interface{})["healthScore"].(map[string]interface{})
	if score["status"] != "HEALTHY" {
		t.Errorf("healthScore = %+v", score)
	}
}

func TestHealthEndpoints_OpenAndHonest(t *testing.T) {
	f := newAPIFixture(t)

	// No token needed.
	resp, _ := f.do(t, http.MethodGet, "/api/v1/health/live", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("live status = %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodGet, "/api/v1/health/ready", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready status = %d", resp.StatusCode)
	}
}

func TestHealth_UnhealthyComponentIs503(t *testing.T) {
	checker := health.NewChecker("test", time.Second)
	checker.Register(health.PingCheck("store", func(ctx context.Context) error {
		return context.DeadlineExceeded
	}))
	verifier, _ := auth.NewVerifier(config.SecurityConfig{JWTSecret: "0123456789abcdef0123456789abcdef"})
	handler := NewHandler(nil, nil, nil, nil, checker, verifier)
	server := httptest.NewServer(NewRouter(handler, config.SecurityConfig{RateLimitDisabled: true}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Status = %d, want 503", resp.StatusCode)
	}
}
