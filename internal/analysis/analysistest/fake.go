// Package analysistest provides a scripted Generator for tests.
package analysistest

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

// CannedResult is a well-formed reply for a two-image request.
const CannedResult = `{
  "location": "Living room",
  "targetDetected": true,
  "activityDescription": "Sitting on the sofa watching cartoons on a tablet",
  "isWatchingScreen": true,
  "screenDevice": "tablet",
  "bestImageIndex": 1,
  "confidence": 0.92,
  "additionalNotes": "Lighting is dim"
}`

// Call records one GenerateContent invocation.
type Call struct {
	Model    string
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// Generator returns Text (or Err) from every call and records the calls.
type Generator struct {
	Text  string
	Err   error
	Usage *genai.GenerateContentResponseUsageMetadata

	// Block, when non-nil, is received from before returning, letting tests
	// hold a call in flight.
	Block chan struct{}

	mu    sync.Mutex
	calls []Call
}

// GenerateContent implements analysis.Generator.
func (g *Generator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	g.calls = append(g.calls, Call{Model: model, Contents: contents, Config: config})
	g.mu.Unlock()

	if g.Block != nil {
		select {
		case <-g.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.Err != nil {
		return nil, g.Err
	}
	return Response(g.Text, g.Usage), nil
}

// Calls returns the recorded calls.
func (g *Generator) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// Response builds a single-candidate response carrying text.
func Response(text string, usage *genai.GenerateContentResponseUsageMetadata) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
		}},
		UsageMetadata: usage,
	}
}
