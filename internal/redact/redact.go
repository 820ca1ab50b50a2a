// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package redact masks personally identifiable values in log output.
package redact

import (
	"strings"
)

// PIIFields are the field names treated as personal data by default.
var PIIFields = []string{"name", "email", "phone", "ssn", "password"}

// Defaults for Redact callers that have no configuration of their own.
const (
	DefaultRedaction = "***"
	DefaultSeparator = ";"
)

// Redactor replaces the values of configured fields. It is immutable and
// safe for concurrent use.
type Redactor struct {
	fields    map[string]struct{}
	redaction string
	separator string
}

// New creates a Redactor. Field names match case-insensitively.
func New(fields []string, redaction, separator string) *Redactor {
	r := &Redactor{
		fields:    make(map[string]struct{}, len(fields)),
		redaction: redaction,
		separator: separator,
	}
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			r.fields[strings.ToLower(f)] = struct{}{}
		}
	}
	return r
}

// Default redacts PIIFields with DefaultRedaction over DefaultSeparator.
func Default() *Redactor {
	return New(PIIFields, DefaultRedaction, DefaultSeparator)
}

// Redaction returns the replacement text.
func (r *Redactor) Redaction() string {
	return r.redaction
}

// Sensitive reports whether key names a redacted field.
func (r *Redactor) Sensitive(key string) bool {
	_, ok := r.fields[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Message rewrites every key=value segment of msg whose key is sensitive,
// keeping keys, separators and surrounding whitespace in place. Segments
// without '=' pass through unchanged.
func (r *Redactor) Message(msg string) string {
	if len(r.fields) == 0 || msg == "" {
		return msg
	}
	if r.separator == "" {
		return r.segment(msg)
	}
	segments := strings.Split(msg, r.separator)
	for i, s := range segments {
		segments[i] = r.segment(s)
	}
	return strings.Join(segments, r.separator)
}

func (r *Redactor) segment(s string) string {
	key, _, ok := strings.Cut(s, "=")
	if !ok || !r.Sensitive(key) {
		return s
	}
	return key + "=" + r.redaction
}

// Redact masks fields in a separator-delimited key=value message.
//
//	Redact([]string{"email", "ssn"}, "***", "name=Bob;email=a@b.com;ssn=123;", ";")
//	// name=Bob;email=***;ssn=***;
func Redact(fields []string, redaction, message, separator string) string {
	return New(fields, redaction, separator).Message(message)
}
