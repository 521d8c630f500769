package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"github.com/fpang/cctv-guardian/internal/auth"
	"github.com/fpang/cctv-guardian/internal/config"
	"github.com/fpang/cctv-guardian/internal/logging"
	"github.com/fpang/cctv-guardian/internal/metrics"
	"github.com/fpang/cctv-guardian/internal/offline"
	"github.com/fpang/cctv-guardian/internal/session"
	"github.com/fpang/cctv-guardian/internal/web"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

// CLI flags
var (
	configFlag       string
	portFlag         int
	basePathFlag     string
	modelFlag        string
	cacheVersionFlag string
	cacheBackendFlag string
	cacheDirFlag     string
	validateKeyFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "guardian-web",
	Short: "Web UI for CCTV screenshot analysis",
	Long: `Guardian Web starts a local web server for analysing CCTV screenshots.
Upload one or more frames, adjust who to look for, and let Gemini describe the
room, the activity and any screen use, highlighting the clearest frame.

The app shell is cached for offline use; the cache generation is named
cctv-guardian-<version>.

Examples:
  guardian-web
  guardian-web --port 9090
  guardian-web --config guardian.yaml --cache-backend disk --cache-dir ./cache
  guardian-web --model gemini-3-pro-preview`,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&configFlag, "config", os.Getenv("GUARDIAN_CONFIG"), "Path to a YAML config file")
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default 8080)")
	rootCmd.Flags().StringVar(&basePathFlag, "base-path", "", "Path the app is mounted under (default /)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use")
	rootCmd.Flags().StringVar(&cacheVersionFlag, "cache-version", "", "Offline cache version")
	rootCmd.Flags().StringVar(&cacheBackendFlag, "cache-backend", "", "Offline cache storage: memory, disk or s3")
	rootCmd.Flags().StringVar(&cacheDirFlag, "cache-dir", "", "Directory for the disk cache backend")
	rootCmd.Flags().BoolVar(&validateKeyFlag, "validate-key", false, "Check the API key with a minimal call at startup")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyFlags overlays explicitly set flags on cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = portFlag
	}
	if flags.Changed("base-path") {
		cfg.Server.BasePath = basePathFlag
	}
	if flags.Changed("model") {
		cfg.Gemini.Model = modelFlag
	}
	if flags.Changed("cache-version") {
		cfg.Cache.Version = cacheVersionFlag
	}
	if flags.Changed("cache-backend") {
		cfg.Cache.Backend = cacheBackendFlag
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.Dir = cacheDirFlag
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	initStart := time.Now()
	logging.Init()
	metrics.SetService("guardian-web")

	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing key is not fatal: the UI still loads and every analysis
	// reports an authentication error.
	apiKey, err := auth.ResolveAPIKey(ctx, cfg.Gemini.APIKeySSMParam)
	if err != nil {
		log.Warn().Err(err).Msg("No Gemini API key available")
	}
	analyzer := analysis.NewGemini(ctx, apiKey,
		analysis.WithModel(cfg.Gemini.Model),
		analysis.WithMaxImageDimension(cfg.Gemini.MaxImageDimension),
	)
	if validateKeyFlag {
		if err := analyzer.ValidateKey(ctx); err != nil {
			log.Warn().Err(err).Msg("API key validation failed")
		}
	}

	limits := session.Limits{
		MaxImages:           cfg.Session.MaxImages,
		MaxImageBytes:       cfg.Session.MaxImageBytes,
		PreviewMaxDimension: cfg.Session.PreviewMaxDimension,
	}
	registry := session.NewRegistry(func() *session.Controller {
		return session.NewController(analyzer, limits)
	}, cfg.Session.IdleTimeout)
	defer registry.Close()

	server, err := web.New(registry, web.Options{
		BasePath:       cfg.NormalizedBasePath(),
		CacheName:      cfg.CacheName(),
		MaxUploadBytes: int64(cfg.Session.MaxImages) * cfg.Session.MaxImageBytes,
	})
	if err != nil {
		return err
	}

	worker, err := startOfflineCache(ctx, cfg, server)
	if err != nil {
		// Serving continues without the offline cache.
		log.Error().Err(err).Str("cache", cfg.CacheName()).Msg("Offline cache install failed")
	}

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(worker),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Graceful shutdown incomplete")
		}
	}()

	logging.NewStartupLogger("guardian-web").
		Version(version).
		Listener("http", addr).
		Cache(cfg.CacheName(), cfg.Cache.Backend).
		Feature("apiKey", apiKey != "").
		Feature("offlineCache", worker != nil).
		Config("model", analyzer.Model()).
		Config("basePath", cfg.NormalizedBasePath()).
		Config("maxImages", strconv.Itoa(cfg.Session.MaxImages)).
		InitDuration(time.Since(initStart)).
		Log()

	fmt.Printf("\n  CCTV Guardian: http://localhost:%d%s\n\n", cfg.Server.Port, cfg.NormalizedBasePath())

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// startOfflineCache installs and activates the shell cache from the
// in-process origin.
func startOfflineCache(ctx context.Context, cfg *config.Config, server *web.Server) (*offline.Worker, error) {
	storage, err := openStorage(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	worker := offline.NewWorker(storage, &offline.HandlerFetcher{Handler: server.Origin()},
		cfg.CacheName(), server.ShellAssets(), offline.WithNetworkFirst(server.IsPage))
	if err := worker.Start(ctx); err != nil {
		return nil, err
	}
	return worker, nil
}
