// Musify - Music Streaming Backend Core
// Copyright 2026 Rostanic20
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Rostanic20/Musify-Backend-sub000

package models

// PreloadHint is a server-suggested next-song candidate, enabling the client
// to warm its cache before the user presses play.
type PreloadHint struct {
	SongID      string  `json:"songId"`
	Probability float64 `json:"probability"`
	Reason      string  `json:"reason"`
}
