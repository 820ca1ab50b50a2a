// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/memory"
	"github.com/holomush/holoauth/internal/auth/postgres"
	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/httpapi"
	"github.com/holomush/holoauth/internal/logging"
	"github.com/holomush/holoauth/internal/observability"
	"github.com/holomush/holoauth/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API server",
		Long: `Start the HTTP API. Settings come from defaults, the --config file,
HOLOAUTH_* environment variables and flags, in increasing precedence.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.ResolvePath(configFile), cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

func defaultMigratorFactory(url string) (Migrator, error) {
	m, err := store.NewMigrator(url)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// openCredentialStore returns a PostgreSQL repository when a database URL is
// configured and an in-memory store otherwise.
func openCredentialStore(ctx context.Context, cfg config.DatabaseConfig) (auth.CredentialStore, func(), error) {
	if cfg.URL == "" {
		return memory.NewStore(), func() {}, nil
	}
	pool, err := store.Connect(ctx, cfg.URL, store.DefaultConnectOptions)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewUserRepository(pool), pool.Close, nil
}

// runServeWithDeps starts the API with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreOpener == nil {
		deps.StoreOpener = openCredentialStore
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = defaultMigratorFactory
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(c httpapi.Config) (APIServer, error) {
			srv, err := httpapi.NewServer(c)
			if err != nil {
				return nil, err
			}
			return srv, nil
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, checks observability.Checks) ObservabilityServer {
			return observability.NewServer(addr, checks)
		}
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := logging.SetDefault("holoauth", version, cfg.Log.Format,
		logging.WithLevel(level),
		logging.WithRedactor(cfg.Redact.Redactor()),
	)

	logger.Info("starting holoauth",
		"http_addr", cfg.HTTP.Addr,
		"auth_type", cfg.Auth.Type,
		"session_backend", cfg.Session.Backend,
		"hasher", cfg.Hasher.Algorithm,
		"persistent", cfg.Database.URL != "",
	)

	if cfg.Database.AutoMigrate && cfg.Database.URL != "" {
		if err := autoMigrate(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	users, closeStore, err := deps.StoreOpener(ctx, cfg.Database)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "open credential store").Wrap(err)
	}
	defer closeStore()

	hasher, err := auth.NewPasswordHasher(cfg.Hasher.Algorithm, cfg.Hasher.BcryptCost)
	if err != nil {
		return err
	}
	logger.Debug("password hasher ready", "algorithm", hasher.Algorithm())
	sessions, err := auth.NewSessionManager(cfg.Session.Backend, users, logger)
	if err != nil {
		return err
	}
	service, err := auth.NewServiceWithLogger(users, sessions, hasher, logger)
	if err != nil {
		return err
	}
	resolver, err := auth.NewResolver(cfg.Auth.Type, users, sessions, hasher, cfg.Session.CookieName, logger)
	if err != nil {
		return err
	}
	policy, err := auth.NewPathPolicy(cfg.Auth.ExcludedPaths)
	if err != nil {
		return err
	}
	logger.Debug("path policy loaded", "excluded_paths", policy.Patterns())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readinessChecks(&ready, users))
		metrics = obsServer.Metrics()
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVER_START_FAILED").With("server", "observability").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	apiServer, err := deps.APIServerFactory(httpapi.Config{
		Addr:       cfg.HTTP.Addr,
		AuthType:   cfg.Auth.Type,
		CookieName: cfg.Session.CookieName,
		Service:    service,
		Resolver:   resolver,
		Policy:     policy,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		stopObservability(obsServer, logger)
		return err
	}
	apiErrChan, err := apiServer.Start()
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("SERVER_START_FAILED").With("server", "api").Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")
	ready.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("HoloAuth listening on " + apiServer.Addr())
	logger.Info("holoauth ready", "addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	ready.Store(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	stopObservability(obsServer, logger)

	logger.Info("shutdown complete")
	return nil
}

// pinger is implemented by credential stores backed by a database.
type pinger interface {
	Ping(ctx context.Context) error
}

var errNotServing = errors.New("api server not serving")

func readinessChecks(ready *atomic.Bool, users auth.CredentialStore) observability.Checks {
	checks := observability.Checks{
		"api": func(context.Context) error {
			if !ready.Load() {
				return errNotServing
			}
			return nil
		},
	}
	if p, ok := users.(pinger); ok {
		checks["database"] = p.Ping
	}
	return checks
}

func autoMigrate(url string, factory func(string) (Migrator, error), logger *slog.Logger) error {
	migrator, err := factory(url)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending migrations").Wrap(err)
	}
	if len(pending) == 0 {
		logger.Info("schema up to date")
		return nil
	}
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	logger.Info("applied migrations", "count", len(pending))
	return nil
}

func stopObservability(srv ObservabilityServer, logger *slog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a server reports an error. It returns
// when the channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
