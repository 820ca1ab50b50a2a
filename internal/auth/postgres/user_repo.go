// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements auth.CredentialStore on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// Querier is the subset of pgxpool.Pool used by the repository.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = "id, email, hashed_password, session_id, reset_token, created_at, updated_at"

// UserRepository implements auth.CredentialStore using PostgreSQL.
// Every write is a single statement, so a reader never observes half an update.
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// FindUserBy retrieves the user matching all criteria fields.
func (r *UserRepository) FindUserBy(ctx context.Context, criteria auth.Criteria) (*auth.User, error) {
	if criteria.IsEmpty() {
		return nil, oops.Code("USER_FIND_NO_CRITERIA").Wrapf(auth.ErrMalformedInput, "no attributes provided for filtering")
	}

	where, args := whereClause(criteria, 1)
	row := r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", args...)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "find user").Wrap(err)
	}
	return user, nil
}

// AddUser inserts a new user. A duplicate email maps to auth.ErrAlreadyExists.
func (r *UserRepository) AddUser(ctx context.Context, email, hashedPassword string) (*auth.User, error) {
	user, err := auth.NewUser(email, hashedPassword)
	if err != nil {
		return nil, err
	}

	_, err = r.db.Exec(ctx,
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7)",
		user.ID.String(),
		user.Email,
		user.HashedPassword,
		user.SessionID,
		user.ResetToken,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("USER_EMAIL_EXISTS").Wrap(auth.ErrAlreadyExists)
		}
		return nil, oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			Wrap(err)
	}
	return user, nil
}

// UpdateUser applies changes to the user with id.
func (r *UserRepository) UpdateUser(ctx context.Context, id ulid.ULID, changes auth.UserUpdate) error {
	return r.UpdateUserIf(ctx, id, auth.Criteria{}, changes)
}

// UpdateUserIf applies changes only while the row still matches expect.
func (r *UserRepository) UpdateUserIf(ctx context.Context, id ulid.ULID, expect auth.Criteria, changes auth.UserUpdate) error {
	if err := changes.Validate(); err != nil {
		return err
	}

	sets := make([]string, 0, len(changes)+1)
	args := []any{id.String()}
	for _, c := range changes {
		args = append(args, c.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Field, len(args)))
	}
	args = append(args, time.Now())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	if !expect.IsEmpty() {
		guard, guardArgs := whereClause(expect, len(args)+1)
		query += " AND " + guard
		args = append(args, guardArgs...)
	}

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_TOKEN_CONFLICT").With("id", id.String()).Wrap(auth.ErrAlreadyExists)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// ListUsers returns all users ordered by id, which is creation order.
func (r *UserRepository) ListUsers(ctx context.Context) ([]*auth.User, error) {
	rows, err := r.db.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "list users").Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.With("operation", "list users").Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "iterate users").Wrap(err)
	}
	return users, nil
}

// Ping checks that the database answers queries.
func (r *UserRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return oops.Code("DB_PING_FAILED").Wrap(err)
	}
	return nil
}

// whereClause renders criteria as an AND of equality tests with placeholders
// numbered from first.
func whereClause(c auth.Criteria, first int) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, first+len(args)-1))
	}
	if c.ID != nil {
		add("id", c.ID.String())
	}
	if c.Email != nil {
		add("email", *c.Email)
	}
	if c.SessionID != nil {
		add("session_id", *c.SessionID)
	}
	if c.ResetToken != nil {
		add("reset_token", *c.ResetToken)
	}
	return strings.Join(conds, " AND "), args
}

// scanUser scans a single row into a User. Errors carry their own code, so
// callers add context without recoding. Callers handle pgx.ErrNoRows.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr      string
		user       auth.User
		sessionID  *string
		resetToken *string
	)
	err := row.Scan(
		&idStr,
		&user.Email,
		&user.HashedPassword,
		&sessionID,
		&resetToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").With("operation", "scan user").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	user.ID = id
	user.SessionID = sessionID
	user.ResetToken = resetToken
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface check.
var _ auth.CredentialStore = (*UserRepository)(nil)
