// Package presentation turns an analysis result into display-ready values.
package presentation

import (
	"fmt"
	"math"
	"strings"

	"github.com/fpang/cctv-guardian/internal/analysis"
)

// Labels shown in the result card.
const (
	LabelTargetDetected = "Target Detected"
	LabelNoTarget       = "No Target Found"
	fallbackDevice      = "device"
)

// ImageRef identifies one image of the analyzed set.
type ImageRef struct {
	ID       string
	Filename string
}

// ResultView is everything the result card needs.
type ResultView struct {
	LocationText      string `json:"locationText"`
	TargetDetected    bool   `json:"targetDetected"`
	TargetLabel       string `json:"targetLabel"`
	ActivityText      string `json:"activityText"`
	ShowScreenAlert   bool   `json:"showScreenAlert"`
	DeviceLabel       string `json:"deviceLabel,omitempty"`
	ConfidencePercent int    `json:"confidencePercent"`
	Notes             string `json:"notes,omitempty"`

	HasSelection    bool   `json:"hasSelection"`
	SelectedIndex   int    `json:"selectedIndex"`
	SelectedLabel   string `json:"selectedLabel,omitempty"`
	SelectedImageID string `json:"selectedImageId,omitempty"`
}

// NewResultView builds the view for r over the ordered set of analyzed
// images. An index outside images yields HasSelection=false.
func NewResultView(r *analysis.Result, images []ImageRef) *ResultView {
	if r == nil {
		return nil
	}

	v := &ResultView{
		LocationText:      r.Location,
		TargetDetected:    r.TargetDetected,
		TargetLabel:       LabelNoTarget,
		ActivityText:      r.ActivityDescription,
		ShowScreenAlert:   r.IsWatchingScreen,
		ConfidencePercent: ConfidencePercent(r.Confidence),
		SelectedIndex:     r.BestImageIndex,
	}
	if r.TargetDetected {
		v.TargetLabel = LabelTargetDetected
	}
	if r.IsWatchingScreen {
		v.DeviceLabel = fallbackDevice
		if r.ScreenDevice != nil && strings.TrimSpace(*r.ScreenDevice) != "" {
			v.DeviceLabel = strings.TrimSpace(*r.ScreenDevice)
		}
	}
	if r.AdditionalNotes != nil {
		v.Notes = strings.TrimSpace(*r.AdditionalNotes)
	}

	if r.BestImageIndex >= 0 && r.BestImageIndex < len(images) {
		v.HasSelection = true
		v.SelectedLabel = fmt.Sprintf("Image #%d", r.BestImageIndex+1)
		v.SelectedImageID = images[r.BestImageIndex].ID
	}
	return v
}

// ConfidencePercent converts a [0,1] confidence to a whole percentage,
// clamped to 0..100.
func ConfidencePercent(c float64) int {
	if math.IsNaN(c) {
		return 0
	}
	p := int(math.Round(c * 100))
	return min(max(p, 0), 100)
}
