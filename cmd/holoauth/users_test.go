// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/memory"
	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/pkg/errutil"
)

func useStore(t *testing.T, opener func(context.Context, config.DatabaseConfig) (auth.CredentialStore, func(), error)) {
	t.Helper()
	prev := storeOpener
	storeOpener = opener
	t.Cleanup(func() { storeOpener = prev })
}

func TestUsersDump_RedactsPII(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	store := memory.NewStore()
	ctx := context.Background()
	alice, err := store.AddUser(ctx, "alice@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, store.UpdateUser(ctx, alice.ID, auth.UserUpdate{auth.SetSessionID("tok")}))
	_, err = store.AddUser(ctx, "bob@example.com", "hash")
	require.NoError(t, err)
	useStore(t, memoryOpener(store))

	out, err := runRoot(t, "users", "dump", "--database-url", "postgres://db/holoauth")
	require.NoError(t, err)

	assert.NotContains(t, out, "alice@example.com")
	assert.NotContains(t, out, "bob@example.com")
	assert.Contains(t, out, "id="+alice.ID.String()+";email=***;session=true;reset_pending=false;")
	assert.Contains(t, out, "2 user(s)")
	assert.Less(t, strings.Index(out, "session=true"), strings.Index(out, "session=false"), "users listed in creation order")
}

func TestUsersDump_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := runRoot(t, "users", "dump")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestUsersDump_StoreFailure(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	useStore(t, func(context.Context, config.DatabaseConfig) (auth.CredentialStore, func(), error) {
		return nil, nil, errors.New("refused")
	})

	_, err := runRoot(t, "users", "dump", "--database-url", "postgres://db/holoauth")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
}

func TestUserRecord(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &auth.User{ID: ulid.Make(), Email: "a@b.c", CreatedAt: created, UpdatedAt: created}
	assert.Equal(t,
		"id="+u.ID.String()+";email=a@b.c;session=false;reset_pending=false;created_at=2026-01-02T03:04:05Z;updated_at=2026-01-02T03:04:05Z;",
		userRecord(u))
}
