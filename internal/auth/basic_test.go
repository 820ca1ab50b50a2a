// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/holoauth/internal/auth"
)

func TestExtractBase64Segment(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Basic Ym9iOnB3ZA==", "Ym9iOnB3ZA==", true},
		{"Basic ", "", true},
		{"basic Ym9iOnB3ZA==", "", false},
		{"Basic  Ym9iOnB3ZA==", " Ym9iOnB3ZA==", true},
		{"Bearer abc", "", false},
		{"Basic", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := auth.ExtractBase64Segment(tt.header)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDecodeBase64(t *testing.T) {
	got, ok := auth.DecodeBase64(base64.StdEncoding.EncodeToString([]byte("bob:pwd")))
	assert.True(t, ok)
	assert.Equal(t, "bob:pwd", got)

	_, ok = auth.DecodeBase64("!!!not base64")
	assert.False(t, ok)

	_, ok = auth.DecodeBase64(base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0xfd}))
	assert.False(t, ok, "invalid UTF-8")
}

func TestSplitCredentials(t *testing.T) {
	tests := []struct {
		name     string
		decoded  string
		user     string
		password string
		ok       bool
	}{
		{"simple", "bob:pwd", "bob", "pwd", true},
		{"password with colons", "bob:p:w:d", "bob", "p:w:d", true},
		{"empty password", "bob:", "bob", "", true},
		{"no delimiter", "bobpwd", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, password, ok := auth.SplitCredentials(tt.decoded)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.user, user)
				assert.Equal(t, tt.password, password)
			}
		})
	}
}
