// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/pkg/errutil"
)

// Session storage backends.
const (
	SessionBackendStore  = "store"
	SessionBackendMemory = "memory"
)

// SessionManager maps opaque session tokens to user identifiers.
//
// Every implementation keeps a single active session per user: creating a
// session replaces any previous one for the same user.
type SessionManager interface {
	// CreateSession mints a token bound to userID.
	CreateSession(ctx context.Context, userID ulid.ULID) (string, error)

	// UserIDForSession resolves a token. Empty and unknown tokens resolve to false.
	UserIDForSession(ctx context.Context, token string) (ulid.ULID, bool)

	// DestroySession removes a session. Unknown tokens are a no-op.
	DestroySession(ctx context.Context, token string) error
}

// NewSessionManager returns the manager for backend.
func NewSessionManager(backend string, users CredentialStore, logger *slog.Logger) (SessionManager, error) {
	switch backend {
	case "", SessionBackendStore:
		return NewStoreSessions(users, logger)
	case SessionBackendMemory:
		return NewMemorySessions(), nil
	default:
		return nil, oops.Code("SESSION_UNKNOWN_BACKEND").
			With("backend", backend).
			Errorf("unsupported session backend %q", backend)
	}
}

func validateUserID(userID ulid.ULID) error {
	if userID.Compare(ulid.ULID{}) == 0 {
		return oops.Code("SESSION_INVALID_USER").Wrapf(ErrMalformedInput, "user ID cannot be zero")
	}
	return nil
}

// MemorySessions holds sessions in process memory. Create one per server and
// inject it; the maps are guarded by the instance's own lock.
type MemorySessions struct {
	mu            sync.RWMutex
	userBySession map[string]ulid.ULID
	sessionByUser map[ulid.ULID]string
}

// NewMemorySessions creates an empty in-memory session table.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{
		userBySession: make(map[string]ulid.ULID),
		sessionByUser: make(map[ulid.ULID]string),
	}
}

// CreateSession mints a token for userID, dropping the user's previous session.
func (m *MemorySessions) CreateSession(_ context.Context, userID ulid.ULID) (string, error) {
	if err := validateUserID(userID); err != nil {
		return "", err
	}
	token, err := GenerateToken()
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").With("user_id", userID.String()).Wrap(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessionByUser[userID]; ok {
		delete(m.userBySession, old)
	}
	m.userBySession[token] = userID
	m.sessionByUser[userID] = token
	return token, nil
}

// UserIDForSession resolves a token.
func (m *MemorySessions) UserIDForSession(_ context.Context, token string) (ulid.ULID, bool) {
	if token == "" {
		return ulid.ULID{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.userBySession[token]
	return id, ok
}

// DestroySession removes token if present.
func (m *MemorySessions) DestroySession(_ context.Context, token string) error {
	if token == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.userBySession[token]
	if !ok {
		return nil
	}
	delete(m.userBySession, token)
	if m.sessionByUser[id] == token {
		delete(m.sessionByUser, id)
	}
	return nil
}

// Len returns the number of live sessions.
func (m *MemorySessions) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.userBySession)
}

// StoreSessions keeps the session token on the user record, so the
// CredentialStore owns the mapping.
type StoreSessions struct {
	users  CredentialStore
	logger *slog.Logger
}

// NewStoreSessions creates a store-backed session manager.
func NewStoreSessions(users CredentialStore, logger *slog.Logger) (*StoreSessions, error) {
	if users == nil {
		return nil, oops.Code("SESSION_INVALID_CONFIG").Errorf("credential store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSessions{users: users, logger: logger}, nil
}

// CreateSession mints a token and writes it to the user's session column.
func (s *StoreSessions) CreateSession(ctx context.Context, userID ulid.ULID) (string, error) {
	if err := validateUserID(userID); err != nil {
		return "", err
	}
	token, err := GenerateToken()
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").With("user_id", userID.String()).Wrap(err)
	}
	if err := s.users.UpdateUser(ctx, userID, UserUpdate{SetSessionID(token)}); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "update user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return token, nil
}

// UserIDForSession looks the token up in the credential store. Store
// failures are logged and resolve to false.
func (s *StoreSessions) UserIDForSession(ctx context.Context, token string) (ulid.ULID, bool) {
	if token == "" {
		return ulid.ULID{}, false
	}
	user, err := s.users.FindUserBy(ctx, BySessionID(token))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogErrorContext(ctx, s.logger, "session lookup failed", err)
		}
		return ulid.ULID{}, false
	}
	return user.ID, true
}

// DestroySession clears the session column of the owning user.
func (s *StoreSessions) DestroySession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	user, err := s.users.FindUserBy(ctx, BySessionID(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("SESSION_DESTROY_FAILED").With("operation", "find user by session").Wrap(err)
	}
	// Guarded so a concurrent login that already replaced the token survives.
	if err := s.users.UpdateUserIf(ctx, user.ID, BySessionID(token), UserUpdate{ClearSessionID()}); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "clear session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return nil
}

// Compile-time interface checks.
var (
	_ SessionManager = (*MemorySessions)(nil)
	_ SessionManager = (*StoreSessions)(nil)
)
