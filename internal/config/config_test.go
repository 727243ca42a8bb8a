// Package config tests cover loading, defaults, validation, and reload.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bunsho.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func minimalConfig(t *testing.T) string {
	t.Helper()
	return writeConfig(t, `
auth:
  access_token_secret: aaa
  refresh_token_secret: bbb
locations:
  - name: media
    dir: /srv/media
`)
}

// TestLoadDefaults fills unset fields with defaults.
func TestLoadDefaults(t *testing.T) {
	c, err := Load(minimalConfig(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Log.Level != "info" {
		t.Fatalf("log level = %q", c.Log.Level)
	}
	if c.HTTP.Host != "127.0.0.1" || c.HTTP.Port != 8000 {
		t.Fatalf("http = %+v", c.HTTP)
	}
	if c.DB.Path == "" {
		t.Fatalf("db path default missing")
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("access ttl = %v", c.Auth.AccessTokenTTL)
	}
	if c.Auth.RefreshTokenTTL != 24*time.Hour {
		t.Fatalf("refresh ttl = %v", c.Auth.RefreshTokenTTL)
	}
}

// TestLoadExplicitValues keeps configured values over defaults.
func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  json: true
http:
  host: 0.0.0.0
  port: 9000
db:
  path: /var/lib/bunsho/bunsho.db
auth:
  access_token_secret: aaa
  refresh_token_secret: bbb
  access_token_ttl: 5m
  refresh_token_ttl: 48h
locations:
  - name: media
    dir: /srv/media
  - name: docs
    dir: /srv/docs
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Log.Level != "debug" || !c.Log.JSON {
		t.Fatalf("log = %+v", c.Log)
	}
	if c.HTTP.Port != 9000 {
		t.Fatalf("port = %d", c.HTTP.Port)
	}
	if c.Auth.AccessTokenTTL != 5*time.Minute || c.Auth.RefreshTokenTTL != 48*time.Hour {
		t.Fatalf("ttls = %+v", c.Auth)
	}
	if len(c.Locations) != 2 || c.Locations[1].Name != "docs" {
		t.Fatalf("locations = %+v", c.Locations)
	}
}

// TestLoadValidation rejects broken configs with descriptive errors.
func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing secrets", `
locations:
  - name: media
    dir: /srv/media
`},
		{"identical secrets", `
auth:
  access_token_secret: same
  refresh_token_secret: same
locations:
  - name: media
    dir: /srv/media
`},
		{"no locations", `
auth:
  access_token_secret: aaa
  refresh_token_secret: bbb
`},
		{"relative location dir", `
auth:
  access_token_secret: aaa
  refresh_token_secret: bbb
locations:
  - name: media
    dir: ./media
`},
		{"root location dir", `
auth:
  access_token_secret: aaa
  refresh_token_secret: bbb
locations:
  - name: media
    dir: /
`},
		{"duplicate location names", `
auth:
  access_token_secret: aaa
  refresh_token_secret: bbb
locations:
  - name: media
    dir: /srv/a
  - name: media
    dir: /srv/b
`},
		{"bad port", `
http:
  port: 99999
auth:
  access_token_secret: aaa
  refresh_token_secret: bbb
locations:
  - name: media
    dir: /srv/media
`},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.body)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

// TestLoadMissingFile fails on unreadable paths.
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

// TestManagerLocations resolves locations by index and by name.
func TestManagerLocations(t *testing.T) {
	m, err := NewManager(minimalConfig(t))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	loc, err := m.LocationAt(0)
	if err != nil || loc.Name != "media" {
		t.Fatalf("LocationAt(0) = %+v, %v", loc, err)
	}
	if _, err := m.LocationAt(1); !errors.Is(err, ErrNoSuchLocation) {
		t.Fatalf("LocationAt(1): %v", err)
	}
	if _, err := m.LocationAt(-1); !errors.Is(err, ErrNoSuchLocation) {
		t.Fatalf("LocationAt(-1): %v", err)
	}

	if _, ok := m.LocationByName("media"); !ok {
		t.Fatalf("LocationByName(media) missing")
	}
	if _, ok := m.LocationByName("nope"); ok {
		t.Fatalf("LocationByName(nope) should miss")
	}
}

// TestManagerReload swaps in new config and keeps the old one on failure.
func TestManagerReload(t *testing.T) {
	path := writeConfig(t, `
auth:
  access_token_secret: aaa
  refresh_token_secret: bbb
locations:
  - name: media
    dir: /srv/media
`)
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	next := `
auth:
  access_token_secret: aaa
  refresh_token_secret: bbb
locations:
  - name: media
    dir: /srv/media
  - name: docs
    dir: /srv/docs
`
	if err := os.WriteFile(path, []byte(next), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := len(m.Current().Locations); got != 2 {
		t.Fatalf("locations after reload = %d", got)
	}

	// A broken rewrite must not disturb the active config.
	if err := os.WriteFile(path, []byte("locations: []\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := m.Reload(); err == nil {
		t.Fatalf("expected reload failure")
	}
	if got := len(m.Current().Locations); got != 2 {
		t.Fatalf("failed reload must keep previous config, got %d locations", got)
	}
}
