// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/postgres"
	"github.com/holomush/holoauth/internal/httpapi"
	"github.com/holomush/holoauth/internal/observability"
)

const cookieName = "_my_session_id"

type flowEnv struct {
	server *httptest.Server
	users  *postgres.UserRepository
}

func newFlowEnv(authType string) *flowEnv {
	users := postgres.NewUserRepository(env.pool)
	sessions, err := auth.NewSessionManager(auth.SessionBackendStore, users, nil)
	Expect(err).NotTo(HaveOccurred())
	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	Expect(err).NotTo(HaveOccurred())
	svc, err := auth.NewService(users, sessions, hasher)
	Expect(err).NotTo(HaveOccurred())
	resolver, err := auth.NewResolver(authType, users, sessions, hasher, cookieName, nil)
	Expect(err).NotTo(HaveOccurred())
	policy, err := auth.NewPathPolicy([]string{"/api/v1/status/", "/api/v1/auth_session/login/"})
	Expect(err).NotTo(HaveOccurred())

	srv, err := httpapi.NewServer(httpapi.Config{
		AuthType:   authType,
		CookieName: cookieName,
		Service:    svc,
		Resolver:   resolver,
		Policy:     policy,
		Metrics:    observability.NewMetrics(prometheus.NewRegistry()),
	})
	Expect(err).NotTo(HaveOccurred())

	ts := httptest.NewServer(srv.Handler())
	DeferCleanup(ts.Close)
	return &flowEnv{server: ts, users: users}
}

func (e *flowEnv) send(method, path string, form url.Values, cookie string) (*http.Response, map[string]any) {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	Expect(err).NotTo(HaveOccurred())
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: cookie})
	}
	resp, err := e.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func sessionFrom(resp *http.Response) string {
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			return c.Value
		}
	}
	return ""
}

var _ = Describe("Authentication flows on PostgreSQL", func() {
	var (
		ctx context.Context
		e   *flowEnv
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncateUsers(ctx, env.pool)
		e = newFlowEnv(auth.ResolverSession)
	})

	creds := url.Values{"email": {"bob@example.com"}, "password": {"s3cret"}}

	It("registers, logs in, reads the profile and logs out", func() {
		resp, _ := e.send(http.MethodPost, "/users", creds, "")
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		resp, _ = e.send(http.MethodPost, "/sessions", creds, "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		token := sessionFrom(resp)
		Expect(token).NotTo(BeEmpty())

		stored, err := e.users.FindUserBy(ctx, auth.ByEmail("bob@example.com"))
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.SessionID).NotTo(BeNil())
		Expect(*stored.SessionID).To(Equal(token))

		resp, body := e.send(http.MethodGet, "/profile", nil, token)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("email", "bob@example.com"))

		resp, _ = e.send(http.MethodDelete, "/sessions", nil, token)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		resp, _ = e.send(http.MethodGet, "/profile", nil, token)
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))
	})

	It("rejects a duplicate registration through the unique index", func() {
		resp, _ := e.send(http.MethodPost, "/users", creds, "")
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		resp, _ = e.send(http.MethodPost, "/users", creds, "")
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("resets a password with a single-use token", func() {
		resp, _ := e.send(http.MethodPost, "/users", creds, "")
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		resp, body := e.send(http.MethodPost, "/reset_password", url.Values{"email": {"bob@example.com"}}, "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		token, ok := body["reset_token"].(string)
		Expect(ok).To(BeTrue())

		apply := url.Values{"email": {"bob@example.com"}, "reset_token": {token}, "new_password": {"n3w"}}
		resp, _ = e.send(http.MethodPut, "/reset_password", apply, "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		resp, _ = e.send(http.MethodPut, "/reset_password", apply, "")
		Expect(resp.StatusCode).To(Equal(http.StatusForbidden))

		resp, _ = e.send(http.MethodPost, "/sessions", creds, "")
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

		resp, _ = e.send(http.MethodPost, "/sessions", url.Values{"email": {"bob@example.com"}, "password": {"n3w"}}, "")
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("guards the API with Basic credentials stored in PostgreSQL", func() {
		basic := newFlowEnv(auth.ResolverBasic)
		resp, _ := basic.send(http.MethodPost, "/users", creds, "")
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		req, err := http.NewRequest(http.MethodGet, basic.server.URL+"/api/v1/users/me", nil)
		Expect(err).NotTo(HaveOccurred())
		req.SetBasicAuth("bob@example.com", "s3cret")
		res, err := basic.server.Client().Do(req)
		Expect(err).NotTo(HaveOccurred())
		res.Body.Close()
		Expect(res.StatusCode).To(Equal(http.StatusOK))

		req.SetBasicAuth("bob@example.com", "wrong")
		res, err = basic.server.Client().Do(req)
		Expect(err).NotTo(HaveOccurred())
		res.Body.Close()
		Expect(res.StatusCode).To(Equal(http.StatusForbidden))
	})
})
