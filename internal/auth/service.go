// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"

	"github.com/holomush/holoauth/pkg/errutil"
)

// dummyPassword is hashed once and verified against when an email is unknown,
// so a failed login costs the same whether or not the account exists.
const dummyPassword = "holoauth-timing-equalizer"

// Service orchestrates registration, login and password reset.
type Service struct {
	users    CredentialStore
	sessions SessionManager
	hasher   PasswordHasher
	logger   *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService creates a Service that logs through slog.Default.
func NewService(users CredentialStore, sessions SessionManager, hasher PasswordHasher) (*Service, error) {
	return NewServiceWithLogger(users, sessions, hasher, slog.Default())
}

// NewServiceWithLogger creates a Service with an explicit logger.
func NewServiceWithLogger(users CredentialStore, sessions SessionManager, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("credential store is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("logger is required")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger,
	}, nil
}

// Register creates a user. Returns ErrAlreadyExists if the email is taken.
func (s *Service) Register(ctx context.Context, email, password string) (user *User, err error) {
	ctx, span := tracer.Start(ctx, "auth.register")
	defer func() { endSpan(span, err) }()

	if email == "" {
		return nil, oops.Code("AUTH_INVALID_EMAIL").Wrapf(ErrMalformedInput, "email cannot be empty")
	}

	_, err = s.users.FindUserBy(ctx, ByEmail(email))
	switch {
	case err == nil:
		return nil, oops.Code("AUTH_USER_EXISTS").Wrapf(ErrAlreadyExists, "email already registered")
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "find user by email").Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}

	user, err = s.users.AddUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, oops.Code("AUTH_USER_EXISTS").Wrapf(ErrAlreadyExists, "email already registered")
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "add user").Wrap(err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID.String()))
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user, nil
}

// UserByEmail looks up a registered user. Returns ErrNotFound for an unknown
// email. Unlike Login it reveals whether the account exists.
func (s *Service) UserByEmail(ctx context.Context, email string) (*User, error) {
	if email == "" {
		return nil, oops.Code("AUTH_INVALID_EMAIL").Wrapf(ErrMalformedInput, "email cannot be empty")
	}
	user, err := s.users.FindUserBy(ctx, ByEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_USER_NOT_FOUND").Wrapf(ErrNotFound, "no user registered with that email")
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").With("operation", "find user by email").Wrap(err)
	}
	return user, nil
}

// ValidLogin reports whether email and password identify a user. It never
// reveals which of the two was wrong.
func (s *Service) ValidLogin(ctx context.Context, email, password string) bool {
	_, err := s.authenticate(ctx, email, password)
	return err == nil
}

// authenticate always runs a password verification, against a dummy hash
// when the email is unknown, to keep response time independent of existence.
func (s *Service) authenticate(ctx context.Context, email, password string) (*User, error) {
	user, lookupErr := s.users.FindUserBy(ctx, ByEmail(email))
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, oops.Code("AUTH_LOGIN_FAILED").With("operation", "find user by email").Wrap(lookupErr)
	}

	target := s.dummy()
	if user != nil {
		target = user.HashedPassword
	}

	valid, verifyErr := s.hasher.Verify(password, target)
	if verifyErr != nil && user != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}
	if user == nil || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrapf(ErrInvalidCredentials, "invalid email or password")
	}
	return user, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			errutil.LogError(s.logger, "failed to prepare dummy password hash", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Login verifies credentials and opens a session, replacing any previous
// session of the user. Hashes flagged by NeedsUpgrade are rehashed.
func (s *Service) Login(ctx context.Context, email, password string) (user *User, token string, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer func() { endSpan(span, err) }()

	user, err = s.authenticate(ctx, email, password)
	if err != nil {
		return nil, "", err
	}
	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	if s.hasher.NeedsUpgrade(user.HashedPassword) {
		s.upgradeHash(ctx, user, password)
	}

	token, err = s.sessions.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "create session").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	return user, token, nil
}

// upgradeHash is best effort; a failure leaves the old hash, which still verifies.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password rehash failed", err)
		return
	}
	if err := s.users.UpdateUser(ctx, user.ID, UserUpdate{SetHashedPassword(hash)}); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password rehash update failed", err)
		return
	}
	user.HashedPassword = hash
}

// Logout destroys the session. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.logout")
	defer func() { endSpan(span, err) }()

	if err = s.sessions.DestroySession(ctx, token); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").With("operation", "destroy session").Wrap(err)
	}
	return nil
}

// UserForSession resolves a session token to its user.
func (s *Service) UserForSession(ctx context.Context, token string) (*User, bool) {
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

// RequestPasswordReset stores a fresh reset token for email and returns it.
// Delivering the token is the caller's job. Returns ErrNotFound for an
// unknown email.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (token string, err error) {
	ctx, span := tracer.Start(ctx, "auth.reset.request")
	defer func() { endSpan(span, err) }()

	user, err := s.users.FindUserBy(ctx, ByEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("RESET_EMAIL_NOT_FOUND").Wrapf(ErrNotFound, "no user registered with that email")
		}
		return "", oops.Code("RESET_REQUEST_FAILED").With("operation", "find user by email").Wrap(err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	token, err = GenerateToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").With("operation", "generate token").Wrap(err)
	}

	if err = s.users.UpdateUser(ctx, user.ID, UserUpdate{SetResetToken(token)}); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset token").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset requested", "user_id", user.ID.String())
	return token, nil
}

// ApplyPasswordReset replaces the password of the user holding token and
// consumes the token in the same update. Returns ErrInvalidToken when the
// token is unknown or was already used.
func (s *Service) ApplyPasswordReset(ctx context.Context, token, newPassword string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.reset.apply")
	defer func() { endSpan(span, err) }()

	if token == "" {
		return oops.Code("RESET_TOKEN_INVALID").Wrapf(ErrInvalidToken, "reset token cannot be empty")
	}
	if newPassword == "" {
		return oops.Code("RESET_PASSWORD_EMPTY").Wrapf(ErrMalformedInput, "new password cannot be empty")
	}

	user, err := s.users.FindUserBy(ctx, ByResetToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").Wrapf(ErrInvalidToken, "reset token not found")
		}
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "find user by reset token").Wrap(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID.String()))

	changes := UserUpdate{SetHashedPassword(hash), ClearResetToken()}
	if err = s.users.UpdateUserIf(ctx, user.ID, ByResetToken(token), changes); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Another request consumed the token while we were hashing.
			return oops.Code("RESET_TOKEN_INVALID").Wrapf(ErrInvalidToken, "reset token already used")
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password reset applied", "user_id", user.ID.String())
	return nil
}
