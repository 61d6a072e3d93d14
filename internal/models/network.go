// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package models

import (
	"github.com/Rostanic20/Musify-Backend-sub000/internal/apperrors"
)

// DeviceType classifies the client device for buffer sizing.
type DeviceType string

const (
	DeviceMobile       DeviceType = "MOBILE"
	DeviceTablet       DeviceType = "TABLET"
	DeviceDesktop      DeviceType = "DESKTOP"
	DeviceTV           DeviceType = "TV"
	DeviceSmartSpeaker DeviceType = "SMART_SPEAKER"
	DeviceCar          DeviceType = "CAR"
	DeviceUnknown      DeviceType = "UNKNOWN"
)

// Normalize maps unrecognized device strings to UNKNOWN so an old client
// never fails a stream start over a new device label.
func (d DeviceType) Normalize() DeviceType {
	switch d {
	case DeviceMobile, DeviceTablet, DeviceDesktop, DeviceTV, DeviceSmartSpeaker, DeviceCar:
		return d
	}
	return DeviceUnknown
}

// NetworkProfile is the client-reported network snapshot driving buffer
// strategy decisions.
type NetworkProfile struct {
	BandwidthKbps  int     `json:"bandwidthKbps" validate:"required,gt=0"`
	LatencyMs      float64 `json:"latencyMs" validate:"gte=0"`
	JitterMs       float64 `json:"jitterMs" validate:"gte=0"`
	PacketLossPct  float64 `json:"packetLossPct" validate:"gte=0,lte=100"`
	ConnectionType string  `json:"connectionType,omitempty"`
}

// Validate checks the profile's numeric constraints. The strategy engine is
// total on valid inputs; invalid profiles are the one way it can fail.
func (p NetworkProfile) Validate() error {
	fields := map[string][]string{}
	if p.BandwidthKbps <= 0 {
		fields["bandwidthKbps"] = append(fields["bandwidthKbps"], "bandwidthKbps must be greater than 0")
	}
	if p.LatencyMs < 0 {
		fields["latencyMs"] = append(fields["latencyMs"], "latencyMs must be at least 0")
	}
	if p.JitterMs < 0 {
		fields["jitterMs"] = append(fields["jitterMs"], "jitterMs must be at least 0")
	}
	if p.PacketLossPct < 0 || p.PacketLossPct > 100 {
		fields["packetLossPct"] = append(fields["packetLossPct"], "packetLossPct must be between 0 and 100")
	}
	if len(fields) > 0 {
		return apperrors.New(apperrors.CodeInvalidArgument, "invalid network profile").WithFields(fields)
	}
	return nil
}
