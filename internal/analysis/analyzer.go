package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fpang/cctv-guardian/internal/assets"
	"github.com/fpang/cctv-guardian/internal/auth"
	"github.com/fpang/cctv-guardian/internal/filehandler"
	"github.com/fpang/cctv-guardian/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultMaxImageDimension bounds the longest side of uploaded images.
const DefaultMaxImageDimension = 1536

// Generator is the slice of the genai client used for analysis calls.
// client.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var _ Generator = (*genai.Models)(nil)

// Analyzer runs the screenshot analysis pipeline against a Generator.
// It is safe for concurrent use.
type Analyzer struct {
	gen          Generator
	model        string
	maxDimension int
	// initErr is set when no usable client could be built; every call
	// fails with it.
	initErr error
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithModel overrides the Gemini model.
func WithModel(model string) Option {
	return func(a *Analyzer) {
		if model != "" {
			a.model = model
		}
	}
}

// WithMaxImageDimension sets the downscale bound. Zero disables downscaling.
func WithMaxImageDimension(n int) Option {
	return func(a *Analyzer) { a.maxDimension = n }
}

// New returns an Analyzer backed by gen.
func New(gen Generator, opts ...Option) *Analyzer {
	a := &Analyzer{
		gen:          gen,
		model:        DefaultModelName,
		maxDimension: DefaultMaxImageDimension,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewGemini creates a Gemini-backed Analyzer. A missing key or client
// construction failure does not fail here: the returned Analyzer reports an
// auth error on every call so the surrounding service can still start.
func NewGemini(ctx context.Context, apiKey string, opts ...Option) *Analyzer {
	if apiKey == "" {
		log.Warn().Msg("No Gemini API key configured, analysis calls will fail")
		a := New(nil, opts...)
		a.initErr = auth.ErrNoAPIKey
		return a
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Gemini client")
		a := New(nil, opts...)
		a.initErr = &auth.ValidationError{Type: auth.ErrTypeInvalidKey, Message: "failed to create Gemini client", Err: err}
		return a
	}
	return New(client.Models, opts...)
}

// Model returns the Gemini model in use.
func (a *Analyzer) Model() string {
	return a.model
}

// ValidateKey makes a minimal call to confirm the API key works. It does not
// touch session state and is meant for startup checks.
func (a *Analyzer) ValidateKey(ctx context.Context) error {
	if a.initErr != nil {
		return a.initErr
	}
	return auth.ValidateAPIKey(ctx, a.gen, a.model)
}

// Analyze submits images and settings to the model and decodes exactly one
// result. Every failure is an *Error.
func (a *Analyzer) Analyze(ctx context.Context, images []Image, settings Settings) (*Result, error) {
	if len(images) == 0 {
		return nil, NewValidationError(MsgNoImages)
	}
	for i, img := range images {
		if len(img.Data) == 0 {
			return nil, NewValidationError(fmt.Sprintf("Image #%d (%s) is empty.", i+1, img.Filename))
		}
		if !filehandler.IsImageMIME(img.MIMEType) {
			return nil, NewValidationError(fmt.Sprintf("Image #%d (%s) is not an image.", i+1, img.Filename))
		}
	}

	if a.initErr != nil {
		recordFailure(KindAuth)
		return nil, classifyCallError(a.initErr)
	}

	log.Info().
		Int("image_count", len(images)).
		Str("model", a.model).
		Str("target", settings.PrimaryTarget).
		Msg("Starting CCTV screenshot analysis")

	prompt, err := BuildPrompt(images, settings)
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("Could not build the analysis request: %v", err))
	}

	parts := make([]*genai.Part, 0, len(images)+1)
	var sentBytes int
	for i, img := range images {
		data, mimeType, scaled := filehandler.Downscale(img.Data, img.MIMEType, a.maxDimension)
		log.Debug().
			Int("index", i).
			Str("file", img.Filename).
			Int("bytes", len(data)).
			Bool("downscaled", scaled).
			Msg("Image ready")
		sentBytes += len(data)
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: mimeType, Data: data},
		})
	}
	parts = append(parts, &genai.Part{Text: prompt})

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.SystemInstructionPrompt}},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   ResponseSchema(),
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}
	geminiStart := time.Now()
	resp, err := a.gen.GenerateContent(ctx, a.model, contents, config)
	geminiElapsed := time.Since(geminiStart)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "analyzeScreenshots").
		Metric("GeminiApiLatencyMs", float64(geminiElapsed.Milliseconds()), metrics.UnitMilliseconds).
		Metric("GeminiUploadBytes", float64(sentBytes), metrics.UnitBytes).
		Count("GeminiApiCalls").
		Property("ImageCount", len(images)).
		Property("Model", a.model)
	if err != nil {
		m.Count("GeminiApiErrors")
	}
	if resp != nil && resp.UsageMetadata != nil {
		m.Metric("GeminiInputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
		m.Metric("GeminiOutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		aerr := classifyCallError(err)
		log.Error().Err(err).Str("kind", aerr.Kind.String()).Msg("Gemini analysis call failed")
		recordFailure(aerr.Kind)
		return nil, aerr
	}

	var text string
	if resp != nil {
		text = resp.Text()
	}
	if strings.TrimSpace(text) == "" {
		log.Warn().Msg("Received empty response from Gemini")
		recordFailure(KindDecode)
		return nil, decodeError(errors.New("empty response"))
	}

	result, err := DecodeResult(text, len(images))
	if err != nil {
		log.Error().Err(err).Int("response_length", len(text)).Msg("Failed to decode analysis response")
		recordFailure(KindDecode)
		return nil, err
	}

	log.Info().
		Bool("target_detected", result.TargetDetected).
		Bool("watching_screen", result.IsWatchingScreen).
		Int("best_image_index", result.BestImageIndex).
		Float64("confidence", result.Confidence).
		Dur("duration", geminiElapsed).
		Msg("Analysis complete")

	return result, nil
}

func recordFailure(kind ErrorKind) {
	metrics.New(metrics.Namespace).
		Dimension("Operation", "analyzeScreenshots").
		Dimension("ErrorKind", kind.String()).
		Count("AnalysisFailures").
		Flush()
}
