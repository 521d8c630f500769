package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fpang/cctv-guardian/internal/analysis"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GUARDIAN_PORT", "GUARDIAN_BASE_PATH", "GEMINI_MODEL", "GUARDIAN_API_KEY_SSM_PARAM",
		"GUARDIAN_CACHE_VERSION", "GUARDIAN_CACHE_BACKEND", "GUARDIAN_CACHE_DIR",
		"GUARDIAN_CACHE_BUCKET", "GUARDIAN_CACHE_PREFIX",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.CacheName() != "cctv-guardian-v1" {
		t.Errorf("CacheName() = %q, want cctv-guardian-v1", cfg.CacheName())
	}
}

func TestModelResolution(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want string
	}{
		{"default", "", analysis.DefaultModelName},
		{"env override", analysis.ModelGemini25Pro, analysis.ModelGemini25Pro},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("GEMINI_MODEL", tt.env)
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Gemini.Model != tt.want {
				t.Errorf("model = %q, want %q", cfg.Gemini.Model, tt.want)
			}
		})
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "guardian.yaml")
	yml := `
server:
  port: 9090
gemini:
  model: gemini-2.5-flash
session:
  maxImages: 4
  idleTimeout: 5m
cache:
  version: v7
  backend: disk
  dir: /var/cache/guardian
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Gemini.Model != "gemini-2.5-pro" {
		t.Errorf("env should override YAML model, got %q", cfg.Gemini.Model)
	}
	if cfg.Session.MaxImages != 4 {
		t.Errorf("maxImages = %d, want 4", cfg.Session.MaxImages)
	}
	if cfg.Session.IdleTimeout != 5*time.Minute {
		t.Errorf("idleTimeout = %s, want 5m", cfg.Session.IdleTimeout)
	}
	if cfg.Session.MaxImageBytes != 20<<20 {
		t.Errorf("unset YAML fields should keep defaults, got %d", cfg.Session.MaxImageBytes)
	}
	if cfg.CacheName() != "cctv-guardian-v7" {
		t.Errorf("CacheName() = %q", cfg.CacheName())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestApplyEnv_BadPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("GUARDIAN_PORT", "eighty")
	if err := Default().ApplyEnv(); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"base path", func(c *Config) { c.Server.BasePath = "app" }, "basePath"},
		{"model", func(c *Config) { c.Gemini.Model = "" }, "gemini.model"},
		{"max images", func(c *Config) { c.Session.MaxImages = 0 }, "maxImages"},
		{"disk without dir", func(c *Config) { c.Cache.Backend = CacheBackendDisk }, "cache.dir"},
		{"s3 without bucket", func(c *Config) { c.Cache.Backend = CacheBackendS3 }, "cache.bucket"},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "redis" }, "unknown cache.backend"},
		{"empty version", func(c *Config) { c.Cache.Version = "" }, "cache.version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizedBasePath(t *testing.T) {
	cfg := Default()
	for in, want := range map[string]string{"/": "/", "/guardian": "/guardian/", "/guardian/": "/guardian/"} {
		cfg.Server.BasePath = in
		if got := cfg.NormalizedBasePath(); got != want {
			t.Errorf("NormalizedBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
