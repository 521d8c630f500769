// Package analysis sends CCTV screenshots to Gemini with a declared response
// schema and decodes the structured verdict.
package analysis

import "time"

// Default analysis settings.
const (
	DefaultPrimaryTarget     = "Little girl"
	DefaultAgeRange          = "4 to 6 years"
	DefaultActivityFocus     = "Watching cartoons on tablet, TV, or mobile phone"
	DefaultLocationDetection = true
)

// Settings describes who to look for and what activity to focus on.
type Settings struct {
	PrimaryTarget     string `json:"primaryTarget" yaml:"primaryTarget"`
	AgeRange          string `json:"ageRange" yaml:"ageRange"`
	ActivityFocus     string `json:"activityFocus" yaml:"activityFocus"`
	LocationDetection bool   `json:"locationDetection" yaml:"locationDetection"`
}

// DefaultSettings returns the settings a new session starts with.
func DefaultSettings() Settings {
	return Settings{
		PrimaryTarget:     DefaultPrimaryTarget,
		AgeRange:          DefaultAgeRange,
		ActivityFocus:     DefaultActivityFocus,
		LocationDetection: DefaultLocationDetection,
	}
}

// Image is one screenshot submitted for analysis. Order is significant:
// Result.BestImageIndex refers to a position in the submitted slice.
type Image struct {
	Filename   string
	MIMEType   string
	Data       []byte
	CapturedAt *time.Time
}

// Result is the decoded verdict for one analysis call.
type Result struct {
	Location            string  `json:"location"`
	TargetDetected      bool    `json:"targetDetected"`
	ActivityDescription string  `json:"activityDescription"`
	IsWatchingScreen    bool    `json:"isWatchingScreen"`
	ScreenDevice        *string `json:"screenDevice,omitempty"`
	BestImageIndex      int     `json:"bestImageIndex"`
	Confidence          float64 `json:"confidence"`
	AdditionalNotes     *string `json:"additionalNotes,omitempty"`
}
