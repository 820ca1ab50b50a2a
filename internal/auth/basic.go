// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// BasicPrefix is the case-sensitive scheme prefix of a Basic Authorization header.
const BasicPrefix = "Basic "

// ExtractBase64Segment returns the part of header after BasicPrefix.
func ExtractBase64Segment(header string) (string, bool) {
	return strings.CutPrefix(header, BasicPrefix)
}

// DecodeBase64 decodes a standard base64 segment into a UTF-8 string.
func DecodeBase64(segment string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(segment)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// SplitCredentials splits decoded credentials on the first colon. The
// password may itself contain colons.
func SplitCredentials(decoded string) (username, password string, ok bool) {
	return strings.Cut(decoded, ":")
}
