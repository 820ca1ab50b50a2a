// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("MY_CODE").Errorf("test error")
	errutil.AssertErrorCode(t, err, "MY_CODE")
}

func TestAssertError_CodeAndSentinel(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := oops.Code("MY_CODE").Wrap(sentinel)
	errutil.AssertError(t, err, "MY_CODE", sentinel)
}
