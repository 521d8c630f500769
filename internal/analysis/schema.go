package analysis

import "google.golang.org/genai"

// Required result fields. A reply missing any of them is a decode error.
var requiredFields = []string{"location", "targetDetected", "activityDescription", "bestImageIndex"}

// ResponseSchema is the structured output contract sent with every request.
func ResponseSchema() *genai.Schema {
	nullable := true
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"location": {
				Type:        genai.TypeString,
				Description: "Where the camera appears to be, e.g. living room or bedroom",
			},
			"targetDetected": {
				Type:        genai.TypeBoolean,
				Description: "Whether the primary target is visible",
			},
			"activityDescription": {
				Type:        genai.TypeString,
				Description: "What the target is doing",
			},
			"isWatchingScreen": {
				Type:        genai.TypeBoolean,
				Description: "Whether the target is looking at a screen",
			},
			"screenDevice": {
				Type:        genai.TypeString,
				Description: "Tablet, TV, mobile phone, or null",
				Nullable:    &nullable,
			},
			"bestImageIndex": {
				Type:        genai.TypeInteger,
				Description: "0-based index of the clearest image",
			},
			"confidence": {
				Type:        genai.TypeNumber,
				Description: "Confidence between 0 and 1",
			},
			"additionalNotes": {
				Type:     genai.TypeString,
				Nullable: &nullable,
			},
		},
		PropertyOrdering: []string{
			"location", "targetDetected", "activityDescription", "isWatchingScreen",
			"screenDevice", "bestImageIndex", "confidence", "additionalNotes",
		},
		Required: requiredFields,
	}
}
