// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory implements auth.CredentialStore in process memory.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// Store keeps users in maps indexed by id, email, session and reset token.
// Records are replaced whole under the write lock, so readers never see a
// partially applied update.
type Store struct {
	mu           sync.RWMutex
	byID         map[ulid.ULID]*auth.User
	byEmail      map[string]ulid.ULID
	bySession    map[string]ulid.ULID
	byResetToken map[string]ulid.ULID
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		byID:         make(map[ulid.ULID]*auth.User),
		byEmail:      make(map[string]ulid.ULID),
		bySession:    make(map[string]ulid.ULID),
		byResetToken: make(map[string]ulid.ULID),
	}
}

// FindUserBy returns a copy of the user matching criteria.
func (s *Store) FindUserBy(_ context.Context, criteria auth.Criteria) (*auth.User, error) {
	if criteria.IsEmpty() {
		return nil, oops.Code("USER_FIND_NO_CRITERIA").Wrapf(auth.ErrMalformedInput, "no attributes provided for filtering")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user := s.candidate(criteria)
	if !criteria.Matches(user) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return user.Clone(), nil
}

// candidate narrows the search through the most selective index available.
// Callers hold the lock.
func (s *Store) candidate(c auth.Criteria) *auth.User {
	var (
		id ulid.ULID
		ok bool
	)
	switch {
	case c.ID != nil:
		id, ok = *c.ID, true
	case c.Email != nil:
		id, ok = s.byEmail[*c.Email]
	case c.SessionID != nil:
		id, ok = s.bySession[*c.SessionID]
	case c.ResetToken != nil:
		id, ok = s.byResetToken[*c.ResetToken]
	}
	if !ok {
		return nil
	}
	return s.byID[id]
}

// AddUser stores a new user.
func (s *Store) AddUser(_ context.Context, email, hashedPassword string) (*auth.User, error) {
	user, err := auth.NewUser(email, hashedPassword)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[email]; exists {
		return nil, oops.Code("USER_EMAIL_EXISTS").Wrap(auth.ErrAlreadyExists)
	}
	s.byID[user.ID] = user
	s.byEmail[email] = user.ID
	return user.Clone(), nil
}

// UpdateUser applies changes to the user with id.
func (s *Store) UpdateUser(ctx context.Context, id ulid.ULID, changes auth.UserUpdate) error {
	return s.UpdateUserIf(ctx, id, auth.Criteria{}, changes)
}

// UpdateUserIf applies changes while the user still matches expect.
func (s *Store) UpdateUserIf(_ context.Context, id ulid.ULID, expect auth.Criteria, changes auth.UserUpdate) error {
	if err := changes.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if !expect.IsEmpty() && !expect.Matches(current) {
		return oops.Code("USER_PRECONDITION_FAILED").With("id", id.String()).Wrap(auth.ErrNotFound)
	}

	next := current.Clone()
	changes.Apply(next)

	if err := s.checkUnique(next); err != nil {
		return err
	}

	s.reindex(current, next)
	s.byID[id] = next
	return nil
}

// checkUnique rejects tokens already held by another user.
func (s *Store) checkUnique(u *auth.User) error {
	if u.SessionID != nil {
		if owner, ok := s.bySession[*u.SessionID]; ok && owner != u.ID {
			return oops.Code("USER_SESSION_CONFLICT").Wrap(auth.ErrAlreadyExists)
		}
	}
	if u.ResetToken != nil {
		if owner, ok := s.byResetToken[*u.ResetToken]; ok && owner != u.ID {
			return oops.Code("USER_RESET_TOKEN_CONFLICT").Wrap(auth.ErrAlreadyExists)
		}
	}
	return nil
}

func (s *Store) reindex(prev, next *auth.User) {
	if prev.SessionID != nil {
		delete(s.bySession, *prev.SessionID)
	}
	if next.SessionID != nil {
		s.bySession[*next.SessionID] = next.ID
	}
	if prev.ResetToken != nil {
		delete(s.byResetToken, *prev.ResetToken)
	}
	if next.ResetToken != nil {
		s.byResetToken[*next.ResetToken] = next.ID
	}
}

// ListUsers returns copies of all users ordered by creation.
func (s *Store) ListUsers(_ context.Context) ([]*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*auth.User, 0, len(s.byID))
	for _, u := range s.byID {
		users = append(users, u.Clone())
	}
	// ULIDs sort by creation time.
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID.Compare(users[j].ID) < 0
	})
	return users, nil
}

// Compile-time interface check.
var _ auth.CredentialStore = (*Store)(nil)
