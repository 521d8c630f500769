package cli

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"github.com/fpang/cctv-guardian/internal/auth"
	"github.com/fpang/cctv-guardian/internal/presentation"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{3 * time.Second, "0:03"},
		{75 * time.Second, "1:15"},
		{time.Hour + 2*time.Minute + 5*time.Second, "1:02:05"},
	}
	for _, tt := range tests {
		if got := FormatDurationShort(tt.in); got != tt.want {
			t.Errorf("FormatDurationShort(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteReport(t *testing.T) {
	v := &presentation.ResultView{
		LocationText:      "Living room",
		TargetLabel:       presentation.LabelTargetDetected,
		ActivityText:      "Watching cartoons",
		ShowScreenAlert:   true,
		DeviceLabel:       "tablet",
		ConfidencePercent: 92,
		HasSelection:      true,
		SelectedIndex:     1,
		SelectedLabel:     "Image #2",
	}
	var buf bytes.Buffer
	WriteReport(&buf, v, []string{"a.png", "b.png"}, 3*time.Second)
	out := buf.String()

	for _, want := range []string{
		"Best frame:  Image #2 (b.png)",
		"Location:    Living room",
		"SCREEN ALERT: Target is actively using a tablet.",
		"Confidence:  92%",
		"2 image(s) analyzed in 0:03",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Note:") {
		t.Error("empty notes should be omitted")
	}
}

func TestConfidenceBar(t *testing.T) {
	if got := confidenceBar(50, 10); got != "[#####.....]" {
		t.Errorf("confidenceBar(50) = %q", got)
	}
	if got := confidenceBar(100, 4); got != "[####]" {
		t.Errorf("confidenceBar(100) = %q", got)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"validation", analysis.NewValidationError(analysis.MsgNoImages), ExitValidation},
		{"auth", &analysis.Error{Kind: analysis.KindAuth, Message: analysis.MsgAuth}, ExitAuth},
		{"transport", &analysis.Error{Kind: analysis.KindTransport}, ExitTransport},
		{"decode", fmt.Errorf("wrapped: %w", &analysis.Error{Kind: analysis.KindDecode}), ExitDecode},
		{"key validation", &auth.ValidationError{Type: auth.ErrTypeInvalidKey}, ExitAuth},
		{"no key", auth.ErrNoAPIKey, ExitAuth},
		{"other", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
	if Hint(auth.ErrNoAPIKey) == "" {
		t.Error("expected a hint for a missing key")
	}
}
