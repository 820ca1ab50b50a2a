// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// Sentinel errors. Services wrap these with oops codes and context, so callers
// should match with errors.Is rather than comparing codes.
var (
	// ErrNotFound is returned when no user, session or token matches.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when registering an email that is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCredentials is returned when a password does not verify.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken is returned for unknown or consumed reset and session tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMalformedInput is returned for unusable input such as empty lookup criteria.
	ErrMalformedInput = errors.New("malformed input")
)
