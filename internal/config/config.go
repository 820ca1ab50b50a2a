// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads HoloAuth settings from defaults, a YAML file, the
// environment and command-line flags, in increasing precedence.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/redact"
)

// EnvPrefix namespaces environment overrides, e.g. HOLOAUTH_SESSION_COOKIE_NAME.
const EnvPrefix = "HOLOAUTH_"

// Config is the validated runtime configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Session  SessionConfig  `koanf:"session"`
	Hasher   HasherConfig   `koanf:"hasher"`
	Database DatabaseConfig `koanf:"database"`
	Redact   RedactConfig   `koanf:"redact"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" jsonschema:"description=API listen address"`
}

// MetricsConfig configures the metrics and health listener. Empty disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" jsonschema:"description=metrics and health listen address; empty disables"`
}

// LogConfig configures log output.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// SlogLevel parses Level. An empty level is info.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, oops.Code("CONFIG_INVALID").With("log.level", c.Level).Wrap(err)
	}
	return level, nil
}

// AuthConfig selects the identity resolver and the paths that skip it.
type AuthConfig struct {
	Type          string   `koanf:"type" jsonschema:"enum=basic,enum=session,enum=basic_auth,enum=session_auth"`
	ExcludedPaths []string `koanf:"excluded_paths" jsonschema:"description=paths that skip authentication; a trailing * matches any suffix"`
}

// SessionConfig configures session cookies and storage.
type SessionConfig struct {
	CookieName string `koanf:"cookie_name"`
	Backend    string `koanf:"backend" jsonschema:"enum=store,enum=memory"`
}

// HasherConfig selects the password hashing algorithm.
type HasherConfig struct {
	Algorithm  string `koanf:"algorithm" jsonschema:"enum=bcrypt,enum=argon2id"`
	BcryptCost int    `koanf:"bcrypt_cost" jsonschema:"minimum=0,maximum=31"`
}

// DatabaseConfig points at PostgreSQL. An empty URL keeps users in memory.
type DatabaseConfig struct {
	URL         string `koanf:"url" jsonschema:"description=PostgreSQL URL; empty keeps users in memory"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// RedactConfig lists the log fields masked as PII.
type RedactConfig struct {
	Fields []string `koanf:"fields"`
	Token  string   `koanf:"token"`
}

// Redactor builds the log redactor for this configuration.
func (c RedactConfig) Redactor() *redact.Redactor {
	return redact.New(c.Fields, c.Token, redact.DefaultSeparator)
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"http.addr":    "0.0.0.0:5000",
		"metrics.addr": "",
		"log.format":   "json",
		"log.level":    "info",
		"auth.type":    auth.ResolverSession,
		"auth.excluded_paths": []string{
			"/api/v1/status/",
			"/api/v1/unauthorized/",
			"/api/v1/forbidden/",
			"/api/v1/auth_session/login/",
		},
		"session.cookie_name":   "_my_session_id",
		"session.backend":       auth.SessionBackendStore,
		"hasher.algorithm":      auth.AlgorithmBcrypt,
		"hasher.bcrypt_cost":    0,
		"database.url":          "",
		"database.auto_migrate": false,
		"redact.fields":         append([]string(nil), redact.PIIFields...),
		"redact.token":          redact.DefaultRedaction,
	}
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"http-addr":      "http.addr",
	"metrics-addr":   "metrics.addr",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"auth-type":      "auth.type",
	"excluded-paths": "auth.excluded_paths",
	"session-name":   "session.cookie_name",
	"session-store":  "session.backend",
	"hasher":         "hasher.algorithm",
	"bcrypt-cost":    "hasher.bcrypt_cost",
	"database-url":   "database.url",
	"auto-migrate":   "database.auto_migrate",
}

// legacyEnv maps the unprefixed variables earlier deployments used.
var legacyEnv = map[string]string{
	"AUTH_TYPE":    "auth.type",
	"SESSION_NAME": "session.cookie_name",
	"DATABASE_URL": "database.url",
}

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{
	"auth.excluded_paths": true,
	"redact.fields":       true,
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("http-addr", d["http.addr"].(string), "API listen address")
	fs.String("metrics-addr", d["metrics.addr"].(string), "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d["log.format"].(string), "log format (json or text)")
	fs.String("log-level", d["log.level"].(string), "log level (debug, info, warn, error)")
	fs.String("auth-type", d["auth.type"].(string), "identity resolver (basic or session)")
	fs.StringSlice("excluded-paths", d["auth.excluded_paths"].([]string), "paths that skip authentication; a trailing * matches any suffix")
	fs.String("session-name", d["session.cookie_name"].(string), "session cookie name")
	fs.String("session-store", d["session.backend"].(string), "session backend (store or memory)")
	fs.String("hasher", d["hasher.algorithm"].(string), "password hash algorithm (bcrypt or argon2id)")
	fs.Int("bcrypt-cost", d["hasher.bcrypt_cost"].(int), "bcrypt cost (0 = library default)")
	fs.String("database-url", d["database.url"].(string), "PostgreSQL URL (empty = in-memory store)")
	fs.Bool("auto-migrate", d["database.auto_migrate"].(bool), "apply pending migrations before serving")
}

// Load builds a Config. path may be empty; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
		if err := ValidateFile(raw); err != nil {
			return nil, oops.With("path", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", legacyEnvValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "legacy env").Wrap(err)
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", prefixedEnvValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagValue(fs)), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func legacyEnvValue(name, value string) (string, any) {
	key, ok := legacyEnv[name]
	if !ok {
		return "", nil
	}
	return key, envValue(key, value)
}

// prefixedEnvValue maps HOLOAUTH_SECTION_NAME to section.name.
func prefixedEnvValue(name, value string) (string, any) {
	rest := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	section, field, ok := strings.Cut(rest, "_")
	if !ok {
		return "", nil
	}
	key := section + "." + field
	return key, envValue(key, value)
}

func envValue(key, value string) any {
	if !listKeys[key] {
		return value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// flagValue maps known flags to their keys. Unchanged flags only fill keys
// that no earlier source set.
func flagValue(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

// normalize accepts the legacy resolver names basic_auth and session_auth.
func (c *Config) normalize() {
	c.Auth.Type = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(c.Auth.Type)), "_auth")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Auth.Type {
	case auth.ResolverBasic, auth.ResolverSession:
	default:
		return oops.Code("CONFIG_INVALID").With("auth.type", c.Auth.Type).
			Errorf("auth.type must be %q or %q", auth.ResolverBasic, auth.ResolverSession)
	}
	switch c.Session.Backend {
	case auth.SessionBackendStore, auth.SessionBackendMemory:
	default:
		return oops.Code("CONFIG_INVALID").With("session.backend", c.Session.Backend).
			Errorf("session.backend must be %q or %q", auth.SessionBackendStore, auth.SessionBackendMemory)
	}
	if c.Auth.Type == auth.ResolverSession && c.Session.CookieName == "" {
		return oops.Code("CONFIG_INVALID").Errorf("session.cookie_name is required for session auth")
	}
	switch c.Hasher.Algorithm {
	case auth.AlgorithmBcrypt, auth.AlgorithmArgon2id:
	default:
		return oops.Code("CONFIG_INVALID").With("hasher.algorithm", c.Hasher.Algorithm).
			Errorf("hasher.algorithm must be %q or %q", auth.AlgorithmBcrypt, auth.AlgorithmArgon2id)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").With("log.format", c.Log.Format).
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if c.Database.AutoMigrate && c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.auto_migrate requires database.url")
	}
	if _, err := auth.NewPathPolicy(c.Auth.ExcludedPaths); err != nil {
		return oops.Code("CONFIG_INVALID").With("auth.excluded_paths", c.Auth.ExcludedPaths).Wrap(err)
	}
	return nil
}
