// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/pkg/errutil"
)

func TestHashPassword_Bcrypt(t *testing.T) {
	out, err := runRoot(t, "hash-password", "--bcrypt-cost", "4", "MyAmazingPassw0rd")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(hash, "$2a$04$"), "got %q", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("MyAmazingPassw0rd")))
}

func TestHashPassword_Argon2idFromStdin(t *testing.T) {
	configFile = ""
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader("from-stdin\n"))
	cmd.SetArgs([]string{"hash-password", "--hasher", auth.AlgorithmArgon2id})
	require.NoError(t, cmd.Execute())

	hash := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(hash, "$argon2id$"), "got %q", hash)

	ok, err := auth.NewArgon2idHasher().Verify("from-stdin", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPassword_NoInput(t *testing.T) {
	configFile = ""
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"hash-password"})

	err := cmd.Execute()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INPUT_READ_FAILED")
}

func TestHashPassword_Verify(t *testing.T) {
	bcryptHash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	argonHash, err := auth.NewArgon2idHasher().Hash("secret")
	require.NoError(t, err)

	for name, hash := range map[string]string{"bcrypt": string(bcryptHash), "argon2id": argonHash} {
		t.Run(name, func(t *testing.T) {
			out, err := runRoot(t, "hash-password", "--verify", hash, "secret")
			require.NoError(t, err)
			assert.Contains(t, out, "valid")

			_, err = runRoot(t, "hash-password", "--verify", hash, "wrong")
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "PASSWORD_MISMATCH")
		})
	}
}
