package analysis

import (
	"time"

	"github.com/fpang/cctv-guardian/internal/assets"
)

// BuildPrompt renders the per-request instructions for the given images and
// settings.
func BuildPrompt(images []Image, settings Settings) (string, error) {
	data := assets.AnalysisPromptData{
		Count:             len(images),
		PrimaryTarget:     settings.PrimaryTarget,
		AgeRange:          settings.AgeRange,
		ActivityFocus:     settings.ActivityFocus,
		LocationDetection: settings.LocationDetection,
	}
	for i, img := range images {
		if img.CapturedAt == nil || img.CapturedAt.IsZero() {
			continue
		}
		data.Captures = append(data.Captures, assets.CaptureTime{
			Index: i,
			Time:  img.CapturedAt.Format(time.RFC3339),
		})
	}
	return assets.RenderAnalysisPrompt(data)
}
