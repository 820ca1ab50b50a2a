// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertError asserts both the oops code and the wrapped sentinel.
func AssertError(t *testing.T, err error, code string, sentinel error) {
	t.Helper()
	require.Error(t, err)
	AssertErrorCode(t, err, code)
	assert.ErrorIs(t, err, sentinel)
}
