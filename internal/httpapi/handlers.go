// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/observability"
	"github.com/holomush/holoauth/pkg/errutil"
)

// UserResponse is the public view of a user. The password hash and tokens
// never leave the server.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newUserResponse(u *auth.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// MessageResponse acknowledges an action on behalf of an email.
type MessageResponse struct {
	Email   string `json:"email,omitempty"`
	Message string `json:"message"`
}

// ResetTokenResponse carries a freshly issued reset token.
type ResetTokenResponse struct {
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.LogErrorContext(r.Context(), s.cfg.Logger, msg, err)
	s.fail(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleStatus serves GET /api/v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, statusResponse{Status: "OK"})
}

// handleAPILogin serves POST /api/v1/auth_session/login. It distinguishes
// an unknown email (404) from a wrong password (401).
func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" {
		s.fail(w, r, http.StatusBadRequest, "email missing")
		return
	}
	if password == "" {
		s.fail(w, r, http.StatusBadRequest, "password missing")
		return
	}

	ctx := r.Context()
	if _, err := s.cfg.Service.UserByEmail(ctx, email); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			s.cfg.Metrics.RecordAuth("login", observability.ResultFailure)
			s.fail(w, r, http.StatusNotFound, "no user found for this email")
			return
		}
		s.internalError(w, r, "login lookup failed", err)
		return
	}

	user, token, err := s.cfg.Service.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.cfg.Metrics.RecordAuth("login", observability.ResultFailure)
			s.fail(w, r, http.StatusUnauthorized, "wrong password")
			return
		}
		s.internalError(w, r, "login failed", err)
		return
	}

	s.cfg.Metrics.RecordAuth("login", observability.ResultSuccess)
	s.cfg.Metrics.RecordSession("created")
	s.setSessionCookie(w, token)
	s.respond(w, r, http.StatusOK, newUserResponse(user))
}

// handleAPILogout serves DELETE /api/v1/auth_session/logout.
func (s *Server) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	if !s.destroySession(w, r) {
		s.fail(w, r, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}
	s.respond(w, r, http.StatusOK, struct{}{})
}

// destroySession ends the session named by the request cookie. It reports
// false when the request carries no live session.
func (s *Server) destroySession(w http.ResponseWriter, r *http.Request) bool {
	token, ok := auth.SessionCookie(r, s.cfg.CookieName)
	if !ok || token == "" {
		return false
	}
	ctx := r.Context()
	if _, ok := s.cfg.Service.UserForSession(ctx, token); !ok {
		return false
	}
	if err := s.cfg.Service.Logout(ctx, token); err != nil {
		errutil.LogErrorContext(ctx, s.cfg.Logger, "logout failed", err)
		return false
	}
	s.cfg.Metrics.RecordSession("destroyed")
	s.clearSessionCookie(w)
	return true
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleAPICreateUser serves POST /api/v1/users with a JSON body.
func (s *Server) handleAPICreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "Wrong format")
		return
	}
	if req.Email == "" {
		s.fail(w, r, http.StatusBadRequest, "email missing")
		return
	}
	if req.Password == "" {
		s.fail(w, r, http.StatusBadRequest, "password missing")
		return
	}

	user, err := s.cfg.Service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrAlreadyExists) || errors.Is(err, auth.ErrMalformedInput) {
			s.fail(w, r, http.StatusBadRequest, "Can't create User")
			return
		}
		s.internalError(w, r, "register failed", err)
		return
	}
	s.respond(w, r, http.StatusCreated, newUserResponse(user))
}

// handleAPIMe serves GET /api/v1/users/me.
func (s *Server) handleAPIMe(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		s.fail(w, r, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}
	s.respond(w, r, http.StatusOK, newUserResponse(user))
}

// handleRegister serves POST /users with form fields email and password.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		s.fail(w, r, http.StatusBadRequest, "Missing required fields")
		return
	}

	if _, err := s.cfg.Service.Register(r.Context(), email, password); err != nil {
		switch {
		case errors.Is(err, auth.ErrAlreadyExists):
			s.fail(w, r, http.StatusBadRequest, "email already registered")
		case errors.Is(err, auth.ErrMalformedInput):
			s.fail(w, r, http.StatusBadRequest, "invalid email or password")
		default:
			s.internalError(w, r, "register failed", err)
		}
		return
	}
	s.respond(w, r, http.StatusCreated, MessageResponse{Email: email, Message: "user created"})
}

// handleLogin serves POST /sessions.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	if email == "" || password == "" {
		s.fail(w, r, http.StatusBadRequest, "Missing required fields")
		return
	}

	_, token, err := s.cfg.Service.Login(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.cfg.Metrics.RecordAuth("login", observability.ResultFailure)
			s.fail(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.internalError(w, r, "login failed", err)
		return
	}

	s.cfg.Metrics.RecordAuth("login", observability.ResultSuccess)
	s.cfg.Metrics.RecordSession("created")
	s.setSessionCookie(w, token)
	s.respond(w, r, http.StatusOK, MessageResponse{Email: email, Message: "logged in"})
}

// handleLogout serves DELETE /sessions.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !s.destroySession(w, r) {
		s.fail(w, r, http.StatusForbidden, "Invalid session")
		return
	}
	s.respond(w, r, http.StatusOK, MessageResponse{Message: "logged out"})
}

// handleProfile serves GET /profile.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.SessionCookie(r, s.cfg.CookieName)
	if !ok || token == "" {
		s.fail(w, r, http.StatusForbidden, "No session found")
		return
	}
	user, ok := s.cfg.Service.UserForSession(r.Context(), token)
	if !ok {
		s.fail(w, r, http.StatusForbidden, "Invalid session")
		return
	}
	s.respond(w, r, http.StatusOK, struct {
		Email string `json:"email"`
	}{Email: user.Email})
}

// handleResetRequest serves POST /reset_password.
func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	if email == "" {
		s.fail(w, r, http.StatusBadRequest, "Missing required field")
		return
	}

	token, err := s.cfg.Service.RequestPasswordReset(r.Context(), email)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			s.cfg.Metrics.RecordReset("request", observability.ResultDenied)
			s.fail(w, r, http.StatusForbidden, "Email not registered")
			return
		}
		s.cfg.Metrics.RecordReset("request", observability.ResultFailure)
		s.internalError(w, r, "reset request failed", err)
		return
	}

	s.cfg.Metrics.RecordReset("request", observability.ResultSuccess)
	s.respond(w, r, http.StatusOK, ResetTokenResponse{Email: email, ResetToken: token})
}

// handleResetApply serves PUT /reset_password.
func (s *Server) handleResetApply(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	token := r.FormValue("reset_token")
	newPassword := r.FormValue("new_password")
	if email == "" || token == "" || newPassword == "" {
		s.fail(w, r, http.StatusBadRequest, "Missing required fields")
		return
	}

	if err := s.cfg.Service.ApplyPasswordReset(r.Context(), token, newPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			s.cfg.Metrics.RecordReset("apply", observability.ResultDenied)
			s.fail(w, r, http.StatusForbidden, "Invalid reset token")
		case errors.Is(err, auth.ErrMalformedInput):
			s.cfg.Metrics.RecordReset("apply", observability.ResultFailure)
			s.fail(w, r, http.StatusBadRequest, "Invalid new password")
		default:
			s.cfg.Metrics.RecordReset("apply", observability.ResultFailure)
			s.internalError(w, r, "reset apply failed", err)
		}
		return
	}

	s.cfg.Metrics.RecordReset("apply", observability.ResultSuccess)
	s.respond(w, r, http.StatusOK, MessageResponse{Email: email, Message: "Password updated"})
}
