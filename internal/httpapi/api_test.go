// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/holoauth/internal/auth"
)

var _ = Describe("Session authenticated API", func() {
	var env *apiEnv

	BeforeEach(func() {
		env = newAPIEnv(auth.ResolverSession)
		_, err := env.service.Register(context.Background(), "bob@hbtn.io", "H0lbertonSchool98!")
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("excluded paths", func() {
		It("serves status without credentials", func() {
			resp, body := env.do(call{method: http.MethodGet, path: "/api/v1/status"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("status", "OK"))
		})

		It("serves the unauthorized and forbidden probes", func() {
			resp, _ := env.do(call{method: http.MethodGet, path: "/api/v1/unauthorized"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			resp, _ = env.do(call{method: http.MethodGet, path: "/api/v1/forbidden"})
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		})
	})

	Describe("protected paths", func() {
		It("returns 401 without a credential", func() {
			resp, body := env.do(call{method: http.MethodGet, path: "/api/v1/users/me"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(body).To(HaveKey("error"))
		})

		It("returns 403 for an unknown session", func() {
			resp, _ := env.do(call{method: http.MethodGet, path: "/api/v1/users/me", cookie: "not-a-session"})
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		})

		It("guards unknown api routes too", func() {
			resp, _ := env.do(call{method: http.MethodGet, path: "/api/v1/nothing"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("POST /api/v1/auth_session/login", func() {
		It("rejects missing fields", func() {
			resp, body := env.do(call{method: http.MethodPost, path: "/api/v1/auth_session/login", form: url.Values{"password": {"x"}}})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body).To(HaveKeyWithValue("error", "email missing"))

			resp, body = env.do(call{method: http.MethodPost, path: "/api/v1/auth_session/login", form: url.Values{"email": {"bob@hbtn.io"}}})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body).To(HaveKeyWithValue("error", "password missing"))
		})

		It("returns 404 for an unknown email", func() {
			resp, body := env.do(call{method: http.MethodPost, path: "/api/v1/auth_session/login", form: credentials("nobody@hbtn.io", "x")})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(body).To(HaveKeyWithValue("error", "no user found for this email"))
		})

		It("returns 401 for a wrong password", func() {
			resp, body := env.do(call{method: http.MethodPost, path: "/api/v1/auth_session/login", form: credentials("bob@hbtn.io", "wrong")})
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(body).To(HaveKeyWithValue("error", "wrong password"))
		})

		It("sets the session cookie and authenticates later requests", func() {
			resp, body := env.do(call{method: http.MethodPost, path: "/api/v1/auth_session/login", form: credentials("bob@hbtn.io", "H0lbertonSchool98!")})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("email", "bob@hbtn.io"))
			Expect(body).NotTo(HaveKey("hashed_password"))

			token := sessionCookie(resp)
			Expect(token).NotTo(BeEmpty())

			resp, body = env.do(call{method: http.MethodGet, path: "/api/v1/users/me", cookie: token})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("email", "bob@hbtn.io"))
		})
	})

	Describe("DELETE /api/v1/auth_session/logout", func() {
		It("ends the session", func() {
			resp, _ := env.do(call{method: http.MethodPost, path: "/api/v1/auth_session/login", form: credentials("bob@hbtn.io", "H0lbertonSchool98!")})
			token := sessionCookie(resp)

			resp, body := env.do(call{method: http.MethodDelete, path: "/api/v1/auth_session/logout", cookie: token})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(BeEmpty())

			resp, _ = env.do(call{method: http.MethodGet, path: "/api/v1/users/me", cookie: token})
			Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		})
	})

	Describe("POST /api/v1/users", func() {
		var token string

		BeforeEach(func() {
			resp, _ := env.do(call{method: http.MethodPost, path: "/api/v1/auth_session/login", form: credentials("bob@hbtn.io", "H0lbertonSchool98!")})
			token = sessionCookie(resp)
		})

		It("creates a user from JSON", func() {
			resp, body := env.do(call{method: http.MethodPost, path: "/api/v1/users", cookie: token, json: `{"email":"new@hbtn.io","password":"pw"}`})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(body).To(HaveKeyWithValue("email", "new@hbtn.io"))
			Expect(body).To(HaveKey("id"))
		})

		It("rejects malformed JSON and missing fields", func() {
			resp, body := env.do(call{method: http.MethodPost, path: "/api/v1/users", cookie: token, json: `{`})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body).To(HaveKeyWithValue("error", "Wrong format"))

			resp, body = env.do(call{method: http.MethodPost, path: "/api/v1/users", cookie: token, json: `{"email":"x@hbtn.io"}`})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body).To(HaveKeyWithValue("error", "password missing"))
		})

		It("rejects a taken email", func() {
			resp, _ := env.do(call{method: http.MethodPost, path: "/api/v1/users", cookie: token, json: `{"email":"bob@hbtn.io","password":"pw"}`})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a password longer than 72 bytes", func() {
			payload := `{"email":"long@hbtn.io","password":"` + strings.Repeat("a", 73) + `"}`
			resp, body := env.do(call{method: http.MethodPost, path: "/api/v1/users", cookie: token, json: payload})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body).To(HaveKeyWithValue("error", "Can't create User"))
		})
	})
})

var _ = Describe("Basic authenticated API", func() {
	var env *apiEnv

	BeforeEach(func() {
		env = newAPIEnv(auth.ResolverBasic)
		_, err := env.service.Register(context.Background(), "bob@hbtn.io", "pass:with:colons")
		Expect(err).NotTo(HaveOccurred())
	})

	It("resolves the user from the Authorization header", func() {
		resp, body := env.do(call{method: http.MethodGet, path: "/api/v1/users/me", headers: basicAuth("bob@hbtn.io", "pass:with:colons")})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("email", "bob@hbtn.io"))
	})

	It("returns 403 for a wrong password", func() {
		resp, _ := env.do(call{method: http.MethodGet, path: "/api/v1/users/me", headers: basicAuth("bob@hbtn.io", "nope")})
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})

	It("returns 403 for a malformed header", func() {
		resp, _ := env.do(call{method: http.MethodGet, path: "/api/v1/users/me", headers: map[string]string{"Authorization": "Bearer abc"}})
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})
})

var _ = Describe("Cookie session endpoints", func() {
	var env *apiEnv

	BeforeEach(func() {
		env = newAPIEnv(auth.ResolverSession)
	})

	login := func(email, password string) string {
		resp, body := env.do(call{method: http.MethodPost, path: "/sessions", form: credentials(email, password)})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("message", "logged in"))
		token := sessionCookie(resp)
		Expect(token).NotTo(BeEmpty())
		return token
	}

	It("runs the register, login, profile, logout flow", func() {
		resp, body := env.do(call{method: http.MethodPost, path: "/users", form: credentials("guillaume@holberton.io", "b4l0u")})
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		Expect(body).To(Equal(map[string]any{"email": "guillaume@holberton.io", "message": "user created"}))

		resp, _ = env.do(call{method: http.MethodPost, path: "/users", form: credentials("guillaume@holberton.io", "b4l0u")})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		resp, _ = env.do(call{method: http.MethodPost, path: "/sessions", form: credentials("guillaume@holberton.io", "wrong")})
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

		token := login("guillaume@holberton.io", "b4l0u")

		resp, body = env.do(call{method: http.MethodGet, path: "/profile", cookie: token})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(Equal(map[string]any{"email": "guillaume@holberton.io"}))

		resp, body = env.do(call{method: http.MethodDelete, path: "/sessions", cookie: token})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("message", "logged out"))

		resp, _ = env.do(call{method: http.MethodGet, path: "/profile", cookie: token})
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})

	It("keeps only the latest session per user", func() {
		_, err := env.service.Register(context.Background(), "a@b.c", "pw")
		Expect(err).NotTo(HaveOccurred())

		first := login("a@b.c", "pw")
		second := login("a@b.c", "pw")
		Expect(second).NotTo(Equal(first))

		resp, _ := env.do(call{method: http.MethodGet, path: "/profile", cookie: first})
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		resp, _ = env.do(call{method: http.MethodGet, path: "/profile", cookie: second})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("rejects a password longer than 72 bytes", func() {
		resp, body := env.do(call{method: http.MethodPost, path: "/users", form: credentials("long@b.c", strings.Repeat("a", 73))})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(body).To(HaveKeyWithValue("error", "invalid email or password"))
	})

	It("logs in a user whose hash predates the configured algorithm", func() {
		legacy, err := auth.NewArgon2idHasher().Hash("pw")
		Expect(err).NotTo(HaveOccurred())
		_, err = env.store.AddUser(context.Background(), "legacy@b.c", legacy)
		Expect(err).NotTo(HaveOccurred())

		token := login("legacy@b.c", "pw")
		resp, body := env.do(call{method: http.MethodGet, path: "/profile", cookie: token})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("email", "legacy@b.c"))

		stored, err := env.store.FindUserBy(context.Background(), auth.ByEmail("legacy@b.c"))
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.HashedPassword).To(HavePrefix("$2a$"))
	})

	It("rejects missing form fields", func() {
		resp, _ := env.do(call{method: http.MethodPost, path: "/users", form: url.Values{"email": {"a@b.c"}}})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		resp, _ = env.do(call{method: http.MethodPost, path: "/sessions", form: url.Values{"password": {"x"}}})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("returns 403 without a session", func() {
		resp, _ := env.do(call{method: http.MethodGet, path: "/profile"})
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		resp, _ = env.do(call{method: http.MethodDelete, path: "/sessions"})
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
		resp, _ = env.do(call{method: http.MethodDelete, path: "/sessions", cookie: "bogus"})
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})
})

var _ = Describe("Password reset endpoints", func() {
	var env *apiEnv

	BeforeEach(func() {
		env = newAPIEnv(auth.ResolverSession)
		_, err := env.service.Register(context.Background(), "bob@bob.com", "old")
		Expect(err).NotTo(HaveOccurred())
	})

	requestToken := func() string {
		resp, body := env.do(call{method: http.MethodPost, path: "/reset_password", form: url.Values{"email": {"bob@bob.com"}}})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("email", "bob@bob.com"))
		token, ok := body["reset_token"].(string)
		Expect(ok).To(BeTrue())
		Expect(token).NotTo(BeEmpty())
		return token
	}

	apply := func(token, password string) (*http.Response, map[string]any) {
		return env.do(call{method: http.MethodPut, path: "/reset_password", form: url.Values{
			"email":        {"bob@bob.com"},
			"reset_token":  {token},
			"new_password": {password},
		}})
	}

	It("issues a token and applies it once", func() {
		token := requestToken()

		resp, body := apply(token, "new")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(Equal(map[string]any{"email": "bob@bob.com", "message": "Password updated"}))

		Expect(env.service.ValidLogin(context.Background(), "bob@bob.com", "new")).To(BeTrue())
		Expect(env.service.ValidLogin(context.Background(), "bob@bob.com", "old")).To(BeFalse())

		resp, _ = apply(token, "again")
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})

	It("returns 403 for an unregistered email", func() {
		resp, _ := env.do(call{method: http.MethodPost, path: "/reset_password", form: url.Values{"email": {"nobody@bob.com"}}})
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})

	It("returns 400 for missing fields", func() {
		resp, _ := env.do(call{method: http.MethodPost, path: "/reset_password", form: url.Values{}})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		resp, _ = apply("", "new")
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("returns 400 for an overlong new password and keeps the token", func() {
		token := requestToken()

		resp, body := apply(token, strings.Repeat("a", 73))
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(body).To(HaveKeyWithValue("error", "Invalid new password"))

		resp, _ = apply(token, "new")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("returns 403 for an unknown token", func() {
		resp, _ := apply("not-a-token", "new")
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})
})
