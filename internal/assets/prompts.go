package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

// SystemInstructionPrompt sets the analyst persona and response rules for
// screenshot analysis.
//
//go:embed prompts/system-instruction.txt
var SystemInstructionPrompt string

//go:embed prompts/analysis-request.txt
var analysisRequestTemplate string

var analysisRequestTmpl = template.Must(template.New("analysis-request").Parse(analysisRequestTemplate))

// CaptureTime is a capture timestamp recovered from an image's metadata.
type CaptureTime struct {
	Index int
	Time  string
}

// AnalysisPromptData holds the dynamic data injected into the analysis request.
type AnalysisPromptData struct {
	Count             int
	PrimaryTarget     string
	AgeRange          string
	ActivityFocus     string
	LocationDetection bool
	Captures          []CaptureTime
}

// MaxIndex is the highest valid image index for the request.
func (d AnalysisPromptData) MaxIndex() int {
	if d.Count <= 0 {
		return 0
	}
	return d.Count - 1
}

// RenderAnalysisPrompt renders the per-request analysis instructions.
func RenderAnalysisPrompt(data AnalysisPromptData) (string, error) {
	var buf bytes.Buffer
	if err := analysisRequestTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render analysis prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
