//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		path := writeConfig(t, `
database:
  driver: memory
auth:
  jwt_secret: s3cret
`)
		cfg, err := LoadConfig(path, true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Admission.LockTimeout != 4*time.Second {
			t.Errorf("expected 4s lock timeout, got %s", cfg.Admission.LockTimeout)
		}
		if cfg.Admission.CodeAttempts != 5 {
			t.Errorf("expected 5 code attempts, got %d", cfg.Admission.CodeAttempts)
		}
		if cfg.Admission.CredentialTTL != 7*24*time.Hour {
			t.Errorf("unexpected credential ttl %s", cfg.Admission.CredentialTTL)
		}
		if p := cfg.Admission.DefaultPolicy; p == nil || !p.CheckInAllowed || !p.CheckOutAllowed || p.ReentryAllowed {
			t.Errorf("unexpected default policy %+v", p)
		}
		if cfg.HTTP.Addr != ":8080" || cfg.Log.Level != "info" || cfg.Log.Format != "json" {
			t.Errorf("unexpected http/log defaults %+v %+v", cfg.HTTP, cfg.Log)
		}
		if !cfg.Runtime.Dev {
			t.Error("expected dev runtime flag")
		}
	})

	t.Run("should keep an explicit all-false default policy", func(t *testing.T) {
		path := writeConfig(t, `
database: {driver: memory}
auth: {jwt_secret: s3cret}
admission:
  default_policy:
    check_in_allowed: false
`)
		cfg, err := LoadConfig(path, false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p := cfg.Admission.DefaultPolicy; p.CheckInAllowed || p.CheckOutAllowed {
			t.Errorf("expected the configured policy, got %+v", p)
		}
	})

	t.Run("should let the environment override the file", func(t *testing.T) {
		path := writeConfig(t, `
database:
  driver: sqlite
  path: /tmp/file.db
auth:
  jwt_secret: from-file
admission:
  lock_timeout: 2s
`)
		t.Setenv("ADMISSION_DATABASE_PATH", "/tmp/env.db")
		t.Setenv("ADMISSION_AUTH_JWT_SECRET", "from-env")
		t.Setenv("ADMISSION_LOCK_TIMEOUT", "750ms")
		t.Setenv("ADMISSION_HTTP_SCAN_RATE_LIMIT", "120")

		cfg, err := LoadConfig(path, false)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Database.Path != "/tmp/env.db" {
			t.Errorf("expected env db path, got %q", cfg.Database.Path)
		}
		if cfg.Auth.JWTSecret != "from-env" {
			t.Errorf("expected env secret, got %q", cfg.Auth.JWTSecret)
		}
		if cfg.Admission.LockTimeout != 750*time.Millisecond {
			t.Errorf("expected 750ms, got %s", cfg.Admission.LockTimeout)
		}
		if cfg.HTTP.ScanRateLimit != 120 {
			t.Errorf("expected 120, got %d", cfg.HTTP.ScanRateLimit)
		}
	})

	t.Run("should load from the environment alone", func(t *testing.T) {
		t.Setenv("ADMISSION_DATABASE_DRIVER", "memory")
		t.Setenv("ADMISSION_AUTH_JWT_SECRET", "env-only")
		if _, err := LoadConfig("", false); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("should read fixtures", func(t *testing.T) {
		path := writeConfig(t, `
database: {driver: memory}
auth: {jwt_secret: s3cret}
fixtures:
  holders:
    RSV-1: member:42
  policies:
    gala: {check_in_allowed: true, reentry_allowed: true}
`)
		cfg, err := LoadConfig(path, true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Fixtures.Holders["RSV-1"] != "member:42" {
			t.Errorf("unexpected holders %v", cfg.Fixtures.Holders)
		}
		if p := cfg.Fixtures.Policies["gala"]; !p.CheckInAllowed || !p.ReentryAllowed || p.CheckOutAllowed {
			t.Errorf("unexpected policy %+v", p)
		}
	})

	t.Run("should reject invalid configuration", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want string
		}{
			{name: "postgres without url", body: "auth: {jwt_secret: x}\n", want: "database.url"},
			{name: "unknown driver", body: "database: {driver: mongo}\nauth: {jwt_secret: x}\n", want: "database.driver"},
			{name: "missing secret", body: "database: {driver: memory}\n", want: "auth.jwt_secret"},
			{name: "telegram without chat", body: "database: {driver: memory}\nauth: {jwt_secret: x}\ntelegram: {token: abc}\n", want: "telegram.chat_id"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := LoadConfig(writeConfig(t, tt.body), false)
				if err == nil || !strings.Contains(err.Error(), tt.want) {
					t.Fatalf("expected an error mentioning %q, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("should fail on a missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), false); err == nil {
			t.Fatal("expected an error")
		}
	})
}
