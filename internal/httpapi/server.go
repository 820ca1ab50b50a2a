// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi serves the HoloAuth HTTP API: the session-authenticated
// /api/v1 surface and the cookie-based /users, /sessions, /profile and
// /reset_password endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/observability"
)

// Config holds the dependencies of a Server.
type Config struct {
	// Addr is the listen address in "host:port" form.
	Addr string
	// AuthType labels resolver metrics ("basic" or "session").
	AuthType string
	// CookieName is the session cookie read and written by the API.
	CookieName string

	Service  *auth.Service
	Resolver auth.IdentityResolver
	Policy   *auth.PathPolicy
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// Server is the API HTTP server.
type Server struct {
	cfg        Config
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer validates cfg and builds the route table.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, oops.Code("HTTPAPI_INVALID_CONFIG").Errorf("auth service is required")
	}
	if cfg.Resolver == nil {
		return nil, oops.Code("HTTPAPI_INVALID_CONFIG").Errorf("identity resolver is required")
	}
	if cfg.CookieName == "" {
		return nil, oops.Code("HTTPAPI_INVALID_CONFIG").Errorf("cookie name is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{cfg: cfg}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the complete API handler, including request metrics.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Excluded by default; the middleware still runs so custom policies apply.
	mux.Handle("GET /api/v1/status", s.protect(http.HandlerFunc(s.handleStatus)))
	mux.Handle("GET /api/v1/unauthorized", s.protect(errorHandler(http.StatusUnauthorized)))
	mux.Handle("GET /api/v1/forbidden", s.protect(errorHandler(http.StatusForbidden)))

	mux.Handle("POST /api/v1/auth_session/login", s.protect(http.HandlerFunc(s.handleAPILogin)))
	mux.Handle("DELETE /api/v1/auth_session/logout", s.protect(http.HandlerFunc(s.handleAPILogout)))
	mux.Handle("POST /api/v1/users", s.protect(http.HandlerFunc(s.handleAPICreateUser)))
	mux.Handle("GET /api/v1/users/me", s.protect(http.HandlerFunc(s.handleAPIMe)))
	mux.Handle("/api/v1/", s.protect(errorHandler(http.StatusNotFound)))

	mux.HandleFunc("POST /users", s.handleRegister)
	mux.HandleFunc("POST /sessions", s.handleLogin)
	mux.HandleFunc("DELETE /sessions", s.handleLogout)
	mux.HandleFunc("GET /profile", s.handleProfile)
	mux.HandleFunc("POST /reset_password", s.handleResetRequest)
	mux.HandleFunc("PUT /reset_password", s.handleResetApply)

	return s.instrument(mux)
}

// Start begins serving the API. The returned channel receives a serve error,
// if any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("HTTPAPI_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.cfg.Logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.cfg.Logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}
	s.cfg.Logger.Info("api server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return oops.Code("HTTPAPI_ENCODE_FAILED").Wrap(err)
	}
	return nil
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, statusCode int, v any) {
	if err := writeJSON(w, statusCode, v); err != nil {
		s.cfg.Logger.WarnContext(r.Context(), "failed to write response",
			"path", r.URL.Path,
			"error", err,
		)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorHandler(statusCode int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = writeJSON(w, statusCode, errorResponse{Error: http.StatusText(statusCode)})
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	s.respond(w, r, statusCode, errorResponse{Error: message})
}
