package analysis

// Gemini model IDs known to handle multi-image input with response schemas.
const (
	ModelGemini3FlashPreview = "gemini-3-flash-preview"
	ModelGemini25Flash       = "gemini-2.5-flash"
	ModelGemini25Pro         = "gemini-2.5-pro"
)

// DefaultModelName is the model used when configuration names none.
// GEMINI_MODEL is resolved by the config package.
const DefaultModelName = ModelGemini3FlashPreview
