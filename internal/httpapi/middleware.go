// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"net/http"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/observability"
)

type userKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user stored by the auth middleware.
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	user, ok := ctx.Value(userKey{}).(*auth.User)
	return user, ok && user != nil
}

// protect enforces the path policy. A request with neither an Authorization
// header nor a session cookie gets 401; one whose credential does not
// resolve gets 403. Resolved users are placed in the request context.
func (s *Server) protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Policy.RequireAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		_, hasHeader := auth.AuthorizationHeader(r)
		_, hasCookie := auth.SessionCookie(r, s.cfg.CookieName)
		if !hasHeader && !hasCookie {
			s.cfg.Metrics.RecordAuth(s.cfg.AuthType, observability.ResultDenied)
			s.fail(w, r, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}

		user, ok := s.cfg.Resolver.CurrentUser(r)
		if !ok {
			s.cfg.Metrics.RecordAuth(s.cfg.AuthType, observability.ResultFailure)
			s.fail(w, r, http.StatusForbidden, http.StatusText(http.StatusForbidden))
			return
		}

		s.cfg.Metrics.RecordAuth(s.cfg.AuthType, observability.ResultSuccess)
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b) //nolint:wrapcheck // pass-through writer
}

// instrument counts requests by matched route pattern and logs them at debug.
func (s *Server) instrument(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		mux.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.cfg.Metrics.RecordRequest(route, rec.status)
		s.cfg.Logger.DebugContext(r.Context(), "request served",
			"method", r.Method,
			"route", route,
			"status", rec.status,
		)
	})
}
