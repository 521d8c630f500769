package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"github.com/fpang/cctv-guardian/internal/auth"
	"github.com/fpang/cctv-guardian/internal/cli"
	"github.com/fpang/cctv-guardian/internal/config"
	"github.com/fpang/cctv-guardian/internal/logging"
	"github.com/fpang/cctv-guardian/internal/metrics"
	"github.com/fpang/cctv-guardian/internal/presentation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// CLI flags
var (
	configFlag        string
	modelFlag         string
	pickFlag          bool
	jsonFlag          bool
	targetFlag        string
	ageFlag           string
	focusFlag         string
	noLocationFlag    bool
	timeoutFlag       time.Duration
	skipMetricsOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "guardian-cli",
	Short: "Analyze CCTV screenshots from the command line",
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [files...]",
	Short: "Analyze one or more screenshots",
	Long: `Analyze sends the given screenshots to Gemini in one request and prints
where the camera is, whether the target is present, what they are doing,
whether they are using a screen, and which frame shows it best.

Examples:
  guardian-cli analyze cam1.jpg cam2.jpg
  guardian-cli analyze --pick
  guardian-cli analyze --target "Toddler" --age "2 to 3 years" frame.png
  guardian-cli analyze --json *.png`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", os.Getenv("GUARDIAN_CONFIG"), "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Gemini model to use")

	analyzeCmd.Flags().BoolVar(&pickFlag, "pick", false, "Choose files with the native file picker")
	analyzeCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the raw result and view as JSON")
	analyzeCmd.Flags().StringVar(&targetFlag, "target", analysis.DefaultPrimaryTarget, "Primary target to look for")
	analyzeCmd.Flags().StringVar(&ageFlag, "age", analysis.DefaultAgeRange, "Approximate age range of the target")
	analyzeCmd.Flags().StringVar(&focusFlag, "focus", analysis.DefaultActivityFocus, "Activity to pay special attention to")
	analyzeCmd.Flags().BoolVar(&noLocationFlag, "no-location", false, "Skip room identification")
	analyzeCmd.Flags().DurationVar(&timeoutFlag, "timeout", 2*time.Minute, "Overall timeout for the analysis call")
	analyzeCmd.Flags().BoolVar(&skipMetricsOutput, "quiet-metrics", true, "Suppress EMF metric lines on stdout")

	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}

func settingsFromFlags() analysis.Settings {
	return analysis.Settings{
		PrimaryTarget:     targetFlag,
		AgeRange:          ageFlag,
		ActivityFocus:     focusFlag,
		LocationDetection: !noLocationFlag,
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logging.Init()
	metrics.SetService("guardian-cli")
	if skipMetricsOutput {
		metrics.SetEnabled(false)
	}
	cmd.SilenceUsage = true

	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("model") {
		cfg.Gemini.Model = modelFlag
	}

	paths := args
	if pickFlag {
		picked, err := cli.PickScreenshots()
		if errors.Is(err, cli.ErrPickCanceled) {
			log.Info().Msg("No files selected")
			return nil
		}
		if err != nil {
			return fmt.Errorf("file picker failed: %w", err)
		}
		paths = append(paths, picked...)
	}

	images, err := analysis.LoadImageFiles(paths, cfg.Session.MaxImageBytes)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	apiKey, err := auth.ResolveAPIKey(ctx, cfg.Gemini.APIKeySSMParam)
	if err != nil {
		log.Debug().Err(err).Msg("No API key resolved")
	}
	analyzer := analysis.NewGemini(ctx, apiKey,
		analysis.WithModel(cfg.Gemini.Model),
		analysis.WithMaxImageDimension(cfg.Gemini.MaxImageDimension),
	)

	start := time.Now()
	result, err := analyzer.Analyze(ctx, images, settingsFromFlags())
	if err != nil {
		cmd.SilenceErrors = true
		fmt.Fprintln(os.Stderr, "Error:", analysis.UserMessage(err))
		if hint := cli.Hint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		return err
	}

	refs := make([]presentation.ImageRef, len(images))
	for i, img := range images {
		refs[i] = presentation.ImageRef{ID: paths[i], Filename: img.Filename}
	}
	view := presentation.NewResultView(result, refs)

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Result *analysis.Result         `json:"result"`
			View   *presentation.ResultView `json:"view"`
			Images []string                 `json:"images"`
		}{result, view, paths})
	}
	cli.WriteReport(os.Stdout, view, paths, time.Since(start))
	return nil
}
