// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"net/http"
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Request surface constants.
const (
	// AuthorizationHeaderName is the header carrying Basic credentials.
	AuthorizationHeaderName = "Authorization"

	// WildcardMarker at the end of an excluded pattern matches any suffix.
	WildcardMarker = "*"
)

// PathPolicy decides which request paths bypass authentication.
// It is built once at startup and is read-only afterwards.
type PathPolicy struct {
	patterns []string
	exact    map[string]struct{}
	prefixes []glob.Glob
}

// NewPathPolicy compiles the excluded path patterns. Patterns ending in
// WildcardMarker match by prefix; all others match after trailing-slash
// normalization.
func NewPathPolicy(excluded []string) (*PathPolicy, error) {
	p := &PathPolicy{
		patterns: append([]string(nil), excluded...),
		exact:    make(map[string]struct{}, len(excluded)),
	}
	for _, pattern := range excluded {
		if pattern == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(pattern, WildcardMarker); ok {
			g, err := glob.Compile(glob.QuoteMeta(prefix) + WildcardMarker)
			if err != nil {
				return nil, oops.Code("POLICY_INVALID_PATTERN").
					With("pattern", pattern).
					Wrap(err)
			}
			p.prefixes = append(p.prefixes, g)
			continue
		}
		p.exact[normalizePath(pattern)] = struct{}{}
	}
	return p, nil
}

// Patterns returns the configured patterns in order.
func (p *PathPolicy) Patterns() []string {
	return append([]string(nil), p.patterns...)
}

// RequireAuth returns false only when path matches an excluded pattern.
// An empty path or an empty policy always requires authentication.
func (p *PathPolicy) RequireAuth(path string) bool {
	if p == nil || path == "" {
		return true
	}
	normalized := normalizePath(path)
	if _, ok := p.exact[normalized]; ok {
		return false
	}
	for _, g := range p.prefixes {
		if g.Match(normalized) {
			return false
		}
	}
	return true
}

// RequireAuth is the one-shot form of PathPolicy.RequireAuth. An invalid
// pattern list fails closed.
func RequireAuth(path string, excluded []string) bool {
	if path == "" || len(excluded) == 0 {
		return true
	}
	p, err := NewPathPolicy(excluded)
	if err != nil {
		return true
	}
	return p.RequireAuth(path)
}

// normalizePath gives s exactly one trailing slash.
func normalizePath(s string) string {
	return strings.TrimRight(s, "/") + "/"
}

// AuthorizationHeader returns the Authorization header verbatim.
func AuthorizationHeader(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	values := r.Header.Values(AuthorizationHeaderName)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// SessionCookie returns the value of the cookie called name.
func SessionCookie(r *http.Request, name string) (string, bool) {
	if r == nil || name == "" {
		return "", false
	}
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}
