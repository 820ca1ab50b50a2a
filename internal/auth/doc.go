// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides authentication primitives for HoloAuth.
//
// # Domain Types
//
// A User carries the email, password hash, and the nullable session and reset
// tokens. Users are changed only through a typed UserUpdate, so every write
// names its fields and is validated before it reaches a CredentialStore.
//
// # Identity Resolution
//
// An IdentityResolver turns a request into a User:
//   - BasicAuthResolver - decodes an "Authorization: Basic" header
//   - SessionAuthResolver - reads the session cookie through a SessionManager
//
// PathPolicy decides which routes skip resolution entirely.
//
// # Sessions
//
// SessionManager has two backends, chosen per deployment:
//   - StoreSessions - token kept on the user record (default)
//   - MemorySessions - token map owned by the manager instance
//
// Both keep a single active session per user.
//
// # Services
//
// Service coordinates registration, login, logout and password reset on top
// of a CredentialStore, a SessionManager and a PasswordHasher.
package auth
