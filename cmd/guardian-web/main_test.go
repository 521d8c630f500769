package main

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"github.com/fpang/cctv-guardian/internal/analysis/analysistest"
	"github.com/fpang/cctv-guardian/internal/config"
	"github.com/fpang/cctv-guardian/internal/metrics"
	"github.com/fpang/cctv-guardian/internal/offline"
	"github.com/fpang/cctv-guardian/internal/session"
	"github.com/fpang/cctv-guardian/internal/web"
	"github.com/spf13/cobra"
)

func TestMain(m *testing.M) {
	metrics.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()

	s, err := openStorage(ctx, config.CacheConfig{Backend: config.CacheBackendMemory})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*offline.MemoryStorage); !ok {
		t.Errorf("memory backend returned %T", s)
	}

	s, err = openStorage(ctx, config.CacheConfig{Backend: config.CacheBackendDisk, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("disk: %v", err)
	}
	if _, ok := s.(*offline.DiskStorage); !ok {
		t.Errorf("disk backend returned %T", s)
	}

	if _, err := openStorage(ctx, config.CacheConfig{Backend: "ftp"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestStartOfflineCache(t *testing.T) {
	registry := session.NewRegistry(func() *session.Controller {
		return session.NewController(analysis.New(&analysistest.Generator{}), session.DefaultLimits())
	}, 0)
	defer registry.Close()

	cfg := config.Default()
	server, err := web.New(registry, web.Options{BasePath: "/", CacheName: cfg.CacheName()})
	if err != nil {
		t.Fatalf("web.New() error = %v", err)
	}
	worker, err := startOfflineCache(context.Background(), cfg, server)
	if err != nil {
		t.Fatalf("startOfflineCache() error = %v", err)
	}
	if worker.State() != offline.StateActive {
		t.Errorf("state = %s, want active", worker.State())
	}
	if worker.CacheName() != "cctv-guardian-v1" {
		t.Errorf("cache name = %s", worker.CacheName())
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&portFlag, "port", 0, "")
	cmd.Flags().StringVar(&modelFlag, "model", "", "")
	cmd.Flags().StringVar(&cacheBackendFlag, "cache-backend", "", "")
	cmd.Flags().StringVar(&basePathFlag, "base-path", "", "")
	cmd.Flags().StringVar(&cacheVersionFlag, "cache-version", "", "")
	cmd.Flags().StringVar(&cacheDirFlag, "cache-dir", "", "")
	if err := cmd.Flags().Parse([]string{"--port", "9090", "--cache-backend", "disk"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	applyFlags(cmd, cfg)
	if cfg.Server.Port != 9090 || cfg.Cache.Backend != "disk" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Gemini.Model != config.Default().Gemini.Model {
		t.Errorf("unset flag overrode model: %q", cfg.Gemini.Model)
	}
}
