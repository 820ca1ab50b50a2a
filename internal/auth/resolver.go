// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/pkg/errutil"
)

// Identity resolver kinds.
const (
	ResolverBasic   = "basic"
	ResolverSession = "session"
)

// IdentityResolver establishes who sent a request.
type IdentityResolver interface {
	// CurrentUser returns the authenticated user, or false if the request
	// carries no usable credential.
	CurrentUser(r *http.Request) (*User, bool)
}

// NewResolver returns the resolver for kind. cookieName is only used by the
// session resolver.
func NewResolver(kind string, users CredentialStore, sessions SessionManager, hasher PasswordHasher, cookieName string, logger *slog.Logger) (IdentityResolver, error) {
	switch kind {
	case ResolverBasic:
		return NewBasicAuthResolver(users, hasher, logger)
	case "", ResolverSession:
		return NewSessionAuthResolver(users, sessions, cookieName, logger)
	default:
		return nil, oops.Code("AUTH_UNKNOWN_RESOLVER").
			With("kind", kind).
			Errorf("unsupported auth type %q", kind)
	}
}

// BasicAuthResolver authenticates requests with HTTP Basic credentials.
type BasicAuthResolver struct {
	users  CredentialStore
	hasher PasswordHasher
	logger *slog.Logger
}

// NewBasicAuthResolver creates a BasicAuthResolver.
func NewBasicAuthResolver(users CredentialStore, hasher PasswordHasher, logger *slog.Logger) (*BasicAuthResolver, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("credential store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BasicAuthResolver{users: users, hasher: hasher, logger: logger}, nil
}

// ResolveUser returns the user whose email is email and whose stored hash
// verifies password.
func (b *BasicAuthResolver) ResolveUser(ctx context.Context, email, password string) (*User, bool) {
	user, err := b.users.FindUserBy(ctx, ByEmail(email))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogErrorContext(ctx, b.logger, "basic auth user lookup failed", err)
		}
		return nil, false
	}
	ok, err := b.hasher.Verify(password, user.HashedPassword)
	if err != nil {
		errutil.LogErrorContext(ctx, b.logger, "basic auth password verification failed", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return user, true
}

// CurrentUser decodes the Authorization header and resolves the user.
func (b *BasicAuthResolver) CurrentUser(r *http.Request) (*User, bool) {
	header, ok := AuthorizationHeader(r)
	if !ok {
		return nil, false
	}
	segment, ok := ExtractBase64Segment(header)
	if !ok {
		return nil, false
	}
	decoded, ok := DecodeBase64(segment)
	if !ok {
		return nil, false
	}
	email, password, ok := SplitCredentials(decoded)
	if !ok {
		return nil, false
	}
	return b.ResolveUser(r.Context(), email, password)
}

// SessionAuthResolver authenticates requests with a session cookie.
type SessionAuthResolver struct {
	users      CredentialStore
	sessions   SessionManager
	cookieName string
	logger     *slog.Logger
}

// NewSessionAuthResolver creates a SessionAuthResolver.
func NewSessionAuthResolver(users CredentialStore, sessions SessionManager, cookieName string, logger *slog.Logger) (*SessionAuthResolver, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("credential store is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionAuthResolver{users: users, sessions: sessions, cookieName: cookieName, logger: logger}, nil
}

// CurrentUser reads the session cookie and resolves it to a user.
func (s *SessionAuthResolver) CurrentUser(r *http.Request) (*User, bool) {
	token, ok := SessionCookie(r, s.cookieName)
	if !ok {
		return nil, false
	}
	ctx := r.Context()
	userID, ok := s.sessions.UserIDForSession(ctx, token)
	if !ok {
		return nil, false
	}
	user, err := s.users.FindUserBy(ctx, ByID(userID))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			errutil.LogErrorContext(ctx, s.logger, "session user lookup failed", err)
		}
		return nil, false
	}
	return user, true
}

// Compile-time interface checks.
var (
	_ IdentityResolver = (*BasicAuthResolver)(nil)
	_ IdentityResolver = (*SessionAuthResolver)(nil)
)
