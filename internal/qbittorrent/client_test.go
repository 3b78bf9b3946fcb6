// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddPayloadOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload AddPayload
		want    map[string]string
	}{
		{
			name:    "defaults disable automatic torrent management",
			payload: AddPayload{},
			want:    map[string]string{"autoTMM": "false"},
		},
		{
			name: "category and save path",
			payload: AddPayload{
				Category: "audiobrr",
				SavePath: "/downloads/audiobooks",
			},
			want: map[string]string{
				"autoTMM":  "false",
				"category": "audiobrr",
				"savepath": "/downloads/audiobooks",
			},
		},
		{
			name:    "tags are comma joined",
			payload: AddPayload{Tags: []string{"B00G3L1C9K", "alice"}},
			want: map[string]string{
				"autoTMM": "false",
				"tags":    "B00G3L1C9K,alice",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.payload.options())
		})
	}
}
