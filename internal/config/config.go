// Package config resolves runtime configuration for the guardian binaries.
//
// Resolution order: built-in defaults, then an optional YAML file, then
// environment variables. Command-line flags are applied last by each cmd.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"gopkg.in/yaml.v3"
)

// Cache backends understood by the offline asset cache.
const (
	CacheBackendMemory = "memory"
	CacheBackendDisk   = "disk"
	CacheBackendS3     = "s3"
)

// CacheNamePrefix is prepended to the cache version to form the generation name.
const CacheNamePrefix = "cctv-guardian-"

// Config is the full runtime configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Session SessionConfig `yaml:"session"`
	Cache   CacheConfig   `yaml:"cache"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"basePath"`
}

// GeminiConfig controls the analysis call.
type GeminiConfig struct {
	Model string `yaml:"model"`
	// APIKeySSMParam names an SSM parameter holding the API key. Only the
	// name lives in config, never the key.
	APIKeySSMParam string `yaml:"apiKeySsmParam"`
	// MaxImageDimension bounds the longest side of images sent to the model.
	MaxImageDimension int `yaml:"maxImageDimension"`
}

// SessionConfig bounds per-session intake.
type SessionConfig struct {
	MaxImages           int           `yaml:"maxImages"`
	MaxImageBytes       int64         `yaml:"maxImageBytes"`
	PreviewMaxDimension int           `yaml:"previewMaxDimension"`
	IdleTimeout         time.Duration `yaml:"idleTimeout"`
}

// CacheConfig selects the offline asset cache generation and its storage.
type CacheConfig struct {
	Version string `yaml:"version"`
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			BasePath: "/",
		},
		Gemini: GeminiConfig{
			Model:             analysis.DefaultModelName,
			MaxImageDimension: 1536,
		},
		Session: SessionConfig{
			MaxImages:           12,
			MaxImageBytes:       20 << 20,
			PreviewMaxDimension: 400,
			IdleTimeout:         30 * time.Minute,
		},
		Cache: CacheConfig{
			Version: "v1",
			Backend: CacheBackendMemory,
			Prefix:  "asset-cache",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty), and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays GUARDIAN_* / GEMINI_* environment variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("GUARDIAN_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GUARDIAN_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("GUARDIAN_BASE_PATH"); v != "" {
		c.Server.BasePath = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv("GUARDIAN_API_KEY_SSM_PARAM"); v != "" {
		c.Gemini.APIKeySSMParam = v
	}
	if v := os.Getenv("GUARDIAN_CACHE_VERSION"); v != "" {
		c.Cache.Version = v
	}
	if v := os.Getenv("GUARDIAN_CACHE_BACKEND"); v != "" {
		c.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("GUARDIAN_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("GUARDIAN_CACHE_BUCKET"); v != "" {
		c.Cache.Bucket = v
	}
	if v := os.Getenv("GUARDIAN_CACHE_PREFIX"); v != "" {
		c.Cache.Prefix = v
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.basePath must start with '/': %q", c.Server.BasePath)
	}
	if c.Gemini.Model == "" {
		return errors.New("gemini.model is required")
	}
	if c.Gemini.MaxImageDimension < 64 {
		return fmt.Errorf("gemini.maxImageDimension too small: %d", c.Gemini.MaxImageDimension)
	}
	if c.Session.MaxImages <= 0 {
		return fmt.Errorf("session.maxImages must be positive: %d", c.Session.MaxImages)
	}
	if c.Session.MaxImageBytes <= 0 {
		return fmt.Errorf("session.maxImageBytes must be positive: %d", c.Session.MaxImageBytes)
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session.idleTimeout must be positive: %s", c.Session.IdleTimeout)
	}
	if c.Cache.Version == "" {
		return errors.New("cache.version is required")
	}
	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendDisk:
		if c.Cache.Dir == "" {
			return errors.New("cache.dir is required for the disk backend")
		}
	case CacheBackendS3:
		if c.Cache.Bucket == "" {
			return errors.New("cache.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	return nil
}

// CacheName is the generation name shared by the Go cache and /sw.js.
func (c *Config) CacheName() string {
	return CacheNamePrefix + c.Cache.Version
}

// NormalizedBasePath returns BasePath with exactly one trailing slash.
func (c *Config) NormalizedBasePath() string {
	return strings.TrimRight(c.Server.BasePath, "/") + "/"
}
