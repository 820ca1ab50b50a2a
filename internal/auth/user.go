// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// User is a registered account.
type User struct {
	ID             ulid.ULID
	Email          string
	HashedPassword string
	SessionID      *string
	ResetToken     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a validated User with no active session or reset token.
func NewUser(email, hashedPassword string) (*User, error) {
	if email == "" {
		return nil, oops.Code("AUTH_INVALID_EMAIL").Wrapf(ErrMalformedInput, "email cannot be empty")
	}
	if strings.TrimSpace(hashedPassword) == "" {
		return nil, oops.Code("AUTH_INVALID_PASSWORD").Wrapf(ErrMalformedInput, "password hash cannot be empty")
	}

	now := time.Now()
	return &User{
		ID:             ulid.Make(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Clone returns a deep copy so callers can't mutate stored state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.SessionID != nil {
		s := *u.SessionID
		c.SessionID = &s
	}
	if u.ResetToken != nil {
		r := *u.ResetToken
		c.ResetToken = &r
	}
	return &c
}

// Criteria is an exact-match conjunction over user fields. Nil fields are ignored.
type Criteria struct {
	ID         *ulid.ULID
	Email      *string
	SessionID  *string
	ResetToken *string
}

// ByID matches a user by identifier.
func ByID(id ulid.ULID) Criteria { return Criteria{ID: &id} }

// ByEmail matches a user by email.
func ByEmail(email string) Criteria { return Criteria{Email: &email} }

// BySessionID matches the user owning a session token.
func BySessionID(token string) Criteria { return Criteria{SessionID: &token} }

// ByResetToken matches the user owning a reset token.
func ByResetToken(token string) Criteria { return Criteria{ResetToken: &token} }

// IsEmpty reports whether no field is constrained.
func (c Criteria) IsEmpty() bool {
	return c.ID == nil && c.Email == nil && c.SessionID == nil && c.ResetToken == nil
}

// Matches reports whether u satisfies every constrained field.
func (c Criteria) Matches(u *User) bool {
	if u == nil || c.IsEmpty() {
		return false
	}
	if c.ID != nil && u.ID != *c.ID {
		return false
	}
	if c.Email != nil && u.Email != *c.Email {
		return false
	}
	if c.SessionID != nil && (u.SessionID == nil || *u.SessionID != *c.SessionID) {
		return false
	}
	if c.ResetToken != nil && (u.ResetToken == nil || *u.ResetToken != *c.ResetToken) {
		return false
	}
	return true
}

// Field names a mutable user column.
type Field int

// Mutable user fields.
const (
	FieldHashedPassword Field = iota + 1
	FieldSessionID
	FieldResetToken
)

// String returns the column name of the field.
func (f Field) String() string {
	switch f {
	case FieldHashedPassword:
		return "hashed_password"
	case FieldSessionID:
		return "session_id"
	case FieldResetToken:
		return "reset_token"
	default:
		return "unknown"
	}
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	return f >= FieldHashedPassword && f <= FieldResetToken
}

// Nullable reports whether the field may be cleared.
func (f Field) Nullable() bool {
	return f == FieldSessionID || f == FieldResetToken
}

// Change sets one field. A nil Value clears a nullable field.
type Change struct {
	Field Field
	Value *string
}

// SetHashedPassword replaces the stored password hash.
func SetHashedPassword(hash string) Change {
	return Change{Field: FieldHashedPassword, Value: &hash}
}

// SetSessionID assigns a session token.
func SetSessionID(token string) Change {
	return Change{Field: FieldSessionID, Value: &token}
}

// ClearSessionID removes the session token.
func ClearSessionID() Change {
	return Change{Field: FieldSessionID}
}

// SetResetToken assigns a reset token.
func SetResetToken(token string) Change {
	return Change{Field: FieldResetToken, Value: &token}
}

// ClearResetToken removes the reset token.
func ClearResetToken() Change {
	return Change{Field: FieldResetToken}
}

// UserUpdate is a set of field changes applied atomically.
type UserUpdate []Change

// Validate rejects empty updates, unknown or repeated fields, and clearing
// a non-nullable field.
func (u UserUpdate) Validate() error {
	if len(u) == 0 {
		return oops.Code("USER_UPDATE_EMPTY").Wrapf(ErrMalformedInput, "update has no changes")
	}
	seen := make(map[Field]struct{}, len(u))
	for _, c := range u {
		if !c.Field.Valid() {
			return oops.Code("USER_UPDATE_UNKNOWN_FIELD").
				With("field", int(c.Field)).
				Wrapf(ErrMalformedInput, "unknown user field")
		}
		if _, dup := seen[c.Field]; dup {
			return oops.Code("USER_UPDATE_DUPLICATE_FIELD").
				With("field", c.Field.String()).
				Wrapf(ErrMalformedInput, "field changed more than once")
		}
		seen[c.Field] = struct{}{}
		if c.Value == nil && !c.Field.Nullable() {
			return oops.Code("USER_UPDATE_NOT_NULLABLE").
				With("field", c.Field.String()).
				Wrapf(ErrMalformedInput, "field cannot be cleared")
		}
	}
	return nil
}

// Apply writes the changes onto user. Callers validate first.
func (u UserUpdate) Apply(user *User) {
	for _, c := range u {
		switch c.Field {
		case FieldHashedPassword:
			user.HashedPassword = *c.Value
		case FieldSessionID:
			user.SessionID = copyString(c.Value)
		case FieldResetToken:
			user.ResetToken = copyString(c.Value)
		}
	}
	user.UpdatedAt = time.Now()
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// CredentialStore persists users. It exclusively owns User records.
type CredentialStore interface {
	// FindUserBy returns the user matching every field of criteria.
	// Returns ErrNotFound if none match, ErrMalformedInput for empty criteria.
	FindUserBy(ctx context.Context, criteria Criteria) (*User, error)

	// AddUser stores a new user. Returns ErrAlreadyExists on duplicate email.
	AddUser(ctx context.Context, email, hashedPassword string) (*User, error)

	// UpdateUser applies changes atomically. Returns ErrNotFound for an
	// unknown id and ErrMalformedInput for an invalid update.
	UpdateUser(ctx context.Context, id ulid.ULID, changes UserUpdate) error

	// UpdateUserIf applies changes only while the record still matches
	// expect. Returns ErrNotFound when it no longer does.
	UpdateUserIf(ctx context.Context, id ulid.ULID, expect Criteria, changes UserUpdate) error

	// ListUsers returns all users ordered by creation.
	ListUsers(ctx context.Context) ([]*User, error)
}
