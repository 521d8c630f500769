// Package cli holds helpers shared by the guardian command-line binaries.
package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fpang/cctv-guardian/internal/presentation"
)

// FormatDurationShort formats a duration in a short format (M:SS or H:MM:SS).
func FormatDurationShort(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// WriteReport prints the result card as plain text. paths are the analyzed
// files in submission order.
func WriteReport(w io.Writer, v *presentation.ResultView, paths []string, elapsed time.Duration) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "CCTV GUARDIAN ANALYSIS")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	if v.HasSelection {
		selected := v.SelectedLabel
		if v.SelectedIndex < len(paths) {
			selected += " (" + paths[v.SelectedIndex] + ")"
		}
		fmt.Fprintf(w, "Best frame:  %s\n", selected)
	}
	fmt.Fprintf(w, "Location:    %s\n", v.LocationText)
	fmt.Fprintf(w, "Target:      %s\n", v.TargetLabel)
	fmt.Fprintf(w, "Activity:    %s\n", v.ActivityText)
	if v.ShowScreenAlert {
		fmt.Fprintf(w, "SCREEN ALERT: Target is actively using a %s.\n", v.DeviceLabel)
	}
	if v.Notes != "" {
		fmt.Fprintf(w, "Note:        %s\n", v.Notes)
	}
	fmt.Fprintf(w, "Confidence:  %d%% %s\n", v.ConfidencePercent, confidenceBar(v.ConfidencePercent, 20))
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%d image(s) analyzed in %s\n", len(paths), FormatDurationShort(elapsed))
}

func confidenceBar(percent, width int) string {
	filled := percent * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
