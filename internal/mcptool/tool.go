// Package mcptool exposes screenshot analysis as an MCP tool.
package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"github.com/fpang/cctv-guardian/internal/presentation"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// ToolName is the registered tool name.
const ToolName = "analyze_cctv_screenshots"

// Analyzer runs one analysis. *analysis.Analyzer satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, images []analysis.Image, settings analysis.Settings) (*analysis.Result, error)
}

type analyzeArgs struct {
	Paths             []string `json:"paths"`
	PrimaryTarget     *string  `json:"primaryTarget,omitempty"`
	AgeRange          *string  `json:"ageRange,omitempty"`
	ActivityFocus     *string  `json:"activityFocus,omitempty"`
	LocationDetection *bool    `json:"locationDetection,omitempty"`
}

// settings overlays the provided fields on the defaults.
func (a analyzeArgs) settings() analysis.Settings {
	s := analysis.DefaultSettings()
	if a.PrimaryTarget != nil {
		s.PrimaryTarget = strings.TrimSpace(*a.PrimaryTarget)
	}
	if a.AgeRange != nil {
		s.AgeRange = strings.TrimSpace(*a.AgeRange)
	}
	if a.ActivityFocus != nil {
		s.ActivityFocus = strings.TrimSpace(*a.ActivityFocus)
	}
	if a.LocationDetection != nil {
		s.LocationDetection = *a.LocationDetection
	}
	return s
}

type analyzeOutput struct {
	Result        *analysis.Result         `json:"result"`
	View          *presentation.ResultView `json:"view"`
	Images        []string                 `json:"images"`
	SelectedImage string                   `json:"selectedImage,omitempty"`
}

func inputSchema() map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"paths": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Screenshot file paths, in order. bestImageIndex refers to this order.",
			},
			"primaryTarget":     str("Who to look for (default: " + analysis.DefaultPrimaryTarget + ")"),
			"ageRange":          str("Approximate age of the target (default: " + analysis.DefaultAgeRange + ")"),
			"activityFocus":     str("Activity to pay special attention to"),
			"locationDetection": map[string]any{"type": "boolean", "description": "Identify the room (default: true)"},
		},
		"required": []string{"paths"},
	}
}

// Register adds the analysis tool to srv. Files larger than maxImageBytes
// are rejected; zero disables the limit.
func Register(srv *mcp.Server, analyzer Analyzer, maxImageBytes int64) {
	tool := &mcp.Tool{
		Name:        ToolName,
		Description: "Analyze CCTV screenshots for a target person: room, activity, screen use and the clearest frame.",
		InputSchema: inputSchema(),
	}
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args analyzeArgs
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}
		out, err := analyze(ctx, analyzer, args, maxImageBytes)
		if err != nil {
			return toolError(err), nil
		}
		data, err := json.Marshal(out)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func analyze(ctx context.Context, analyzer Analyzer, args analyzeArgs, maxImageBytes int64) (*analyzeOutput, error) {
	images, err := analysis.LoadImageFiles(args.Paths, maxImageBytes)
	if err != nil {
		return nil, err
	}

	log.Info().Int("images", len(images)).Msg("MCP analysis requested")
	result, err := analyzer.Analyze(ctx, images, args.settings())
	if err != nil {
		return nil, err
	}

	refs := make([]presentation.ImageRef, len(images))
	out := &analyzeOutput{Result: result, Images: make([]string, len(images))}
	for i, img := range images {
		refs[i] = presentation.ImageRef{ID: args.Paths[i], Filename: img.Filename}
		out.Images[i] = args.Paths[i]
	}
	out.View = presentation.NewResultView(result, refs)
	if out.View.HasSelection {
		out.SelectedImage = out.View.SelectedImageID
	}
	return out, nil
}

// toolError reports err as a tool-level failure so the model can see it.
func toolError(err error) *mcp.CallToolResult {
	msg := err.Error()
	var ae *analysis.Error
	if errors.As(err, &ae) {
		msg = fmt.Sprintf("%s error: %s", ae.Kind, ae.UserMessage())
	}
	log.Warn().Err(err).Msg("MCP tool call failed")
	var res mcp.CallToolResult
	res.SetError(errors.New(msg))
	return &res
}

// NewServer builds an MCP server with the analysis tool registered.
func NewServer(analyzer Analyzer, version string, maxImageBytes int64) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "cctv-guardian", Version: version}, nil)
	Register(srv, analyzer, maxImageBytes)
	return srv
}
