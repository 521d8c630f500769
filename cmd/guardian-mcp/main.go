package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"github.com/fpang/cctv-guardian/internal/auth"
	"github.com/fpang/cctv-guardian/internal/config"
	"github.com/fpang/cctv-guardian/internal/logging"
	"github.com/fpang/cctv-guardian/internal/mcptool"
	"github.com/fpang/cctv-guardian/internal/metrics"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "guardian-mcp",
	Short: "MCP server exposing CCTV screenshot analysis",
	Long: `Guardian MCP serves the analyze_cctv_screenshots tool over stdio so an
MCP client can analyse local screenshot files.

Logs go to stderr; stdout carries the protocol.`,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().StringVar(&configFlag, "config", os.Getenv("GUARDIAN_CONFIG"), "Path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	// stdout belongs to the protocol.
	logging.InitWithWriter(os.Stderr)
	metrics.SetEnabled(false)
	metrics.SetService("guardian-mcp")

	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiKey, err := auth.ResolveAPIKey(ctx, cfg.Gemini.APIKeySSMParam)
	if err != nil {
		log.Warn().Err(err).Msg("No Gemini API key available")
	}
	analyzer := analysis.NewGemini(ctx, apiKey,
		analysis.WithModel(cfg.Gemini.Model),
		analysis.WithMaxImageDimension(cfg.Gemini.MaxImageDimension),
	)

	srv := mcptool.NewServer(analyzer, version, cfg.Session.MaxImageBytes)

	logging.NewStartupLogger("guardian-mcp").
		Version(version).
		Listener("mcp", "stdio").
		Feature("apiKey", apiKey != "").
		Config("model", analyzer.Model()).
		Log()

	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
