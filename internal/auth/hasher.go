// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported hashing algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// bcryptMaxPasswordLen is the longest input bcrypt operates on. Longer
// passwords are rejected instead of silently truncated.
const bcryptMaxPasswordLen = 72

// argon2idPrefix starts every PHC-encoded argon2id hash.
const argon2idPrefix = "$argon2id$"

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted hash with the salt embedded in the output.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash was produced by another algorithm
	// or with weaker parameters than the hasher currently uses.
	NeedsUpgrade(hash string) bool
}

// NewPasswordHasher returns a MigratingHasher that hashes with algorithm.
// bcryptCost is ignored for argon2id and falls back to bcrypt.DefaultCost
// when zero.
func NewPasswordHasher(algorithm string, bcryptCost int) (*MigratingHasher, error) {
	h := &MigratingHasher{argon2id: NewArgon2idHasher()}

	var err error
	switch algorithm {
	case "", AlgorithmBcrypt:
		if h.bcrypt, err = NewBcryptHasher(bcryptCost); err != nil {
			return nil, err
		}
		h.algorithm, h.active = AlgorithmBcrypt, h.bcrypt
	case AlgorithmArgon2id:
		// Only verifies legacy hashes, so the cost setting does not apply.
		h.bcrypt = &BcryptHasher{cost: bcrypt.DefaultCost}
		h.algorithm, h.active = AlgorithmArgon2id, h.argon2id
	default:
		return nil, oops.Code("AUTH_UNKNOWN_HASHER").
			With("algorithm", algorithm).
			Errorf("unsupported password hash algorithm %q", algorithm)
	}
	return h, nil
}

// MigratingHasher hashes with one configured algorithm but verifies hashes
// of every supported algorithm, picked by the hash encoding. Hashes from the
// other algorithm report NeedsUpgrade, so login moves users over.
type MigratingHasher struct {
	algorithm string
	active    PasswordHasher
	bcrypt    *BcryptHasher
	argon2id  *Argon2idHasher
}

// Algorithm returns the algorithm new hashes are produced with.
func (h *MigratingHasher) Algorithm() string {
	return h.algorithm
}

// Hash hashes with the configured algorithm.
func (h *MigratingHasher) Hash(password string) (string, error) {
	return h.active.Hash(password)
}

// Verify checks password against a hash of either algorithm.
func (h *MigratingHasher) Verify(password, hash string) (bool, error) {
	if strings.HasPrefix(hash, argon2idPrefix) {
		return h.argon2id.Verify(password, hash)
	}
	return h.bcrypt.Verify(password, hash)
}

// NeedsUpgrade defers to the configured algorithm.
func (h *MigratingHasher) NeedsUpgrade(hash string) bool {
	return h.active.NeedsUpgrade(hash)
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A zero cost selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("AUTH_INVALID_COST").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt hash of the password. Passwords over 72 bytes are
// rejected with ErrMalformedInput.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > bcryptMaxPasswordLen {
		return "", oops.Code("AUTH_PASSWORD_TOO_LONG").
			With("max_bytes", bcryptMaxPasswordLen).
			Wrapf(ErrMalformedInput, "password exceeds %d bytes", bcryptMaxPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("algorithm", AlgorithmBcrypt).Wrap(err)
	}
	return string(hash), nil
}

// Verify checks the password with bcrypt's own constant-time comparison.
// A password too long to have been hashed never matches; bcrypt would
// otherwise compare only its first 72 bytes.
func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	if len(password) > bcryptMaxPasswordLen {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").With("algorithm", AlgorithmBcrypt).Wrap(err)
	}
}

// NeedsUpgrade returns true for non-bcrypt hashes or a lower cost than configured.
func (h *BcryptHasher) NeedsUpgrade(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < h.cost
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash in PHC string format.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the embedded parameters and compares in constant time.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != AlgorithmArgon2id {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	keyLen := len(expected)
	if keyLen == 0 || keyLen > 1<<10 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// NeedsUpgrade returns true if the hash is not argon2id.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	return !strings.HasPrefix(hash, argon2idPrefix)
}

// Compile-time interface checks.
var (
	_ PasswordHasher = (*BcryptHasher)(nil)
	_ PasswordHasher = (*Argon2idHasher)(nil)
	_ PasswordHasher = (*MigratingHasher)(nil)
)
