// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"net/http"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/httpapi"
	"github.com/holomush/holoauth/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoreOpener opens the credential store named by the database config.
	// Default: openCredentialStore
	StoreOpener func(ctx context.Context, cfg config.DatabaseConfig) (auth.CredentialStore, func(), error)

	// Migrator applies pending migrations when auto-migrate is enabled.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// APIServerFactory creates the API server.
	// Default: httpapi.NewServer
	APIServerFactory func(cfg httpapi.Config) (APIServer, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, checks observability.Checks) ObservabilityServer
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	PendingMigrations() ([]uint, error)
	Close() error
}

// APIServer wraps the methods used from httpapi.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Handler() http.Handler
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
