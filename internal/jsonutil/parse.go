// Package jsonutil provides utilities for decoding JSON from
// LLM responses that may be wrapped in markdown code fences.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmpty is returned when the response carries no text at all.
var ErrEmpty = errors.New("empty response")

// StripMarkdownFences removes ```json ... ``` or ``` ... ``` wrapping from text.
// Returns the content between the fences, or the original text if no fences are found.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}

	startIdx := 1 // skip the opening ``` line
	endIdx := len(lines) - 1

	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}

	return strings.Join(lines[startIdx:endIdx], "\n")
}

// DecodeObject strips fences from raw model output and decodes it as a single
// JSON object, returning its fields undecoded. It does not hunt for JSON
// inside prose: schema-constrained responses must be the object itself, and
// anything else is a malformed reply.
func DecodeObject(raw string) (map[string]json.RawMessage, error) {
	text := StripMarkdownFences(raw)
	if text == "" {
		return nil, ErrEmpty
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w (text: %s)", err, preview(text))
	}
	if fields == nil {
		// literal `null`
		return nil, fmt.Errorf("invalid JSON object: null")
	}
	return fields, nil
}

// MissingFields returns the names from required that are absent from fields
// or explicitly null, in the order given.
func MissingFields(fields map[string]json.RawMessage, required ...string) []string {
	var missing []string
	for _, name := range required {
		v, ok := fields[name]
		if !ok || strings.TrimSpace(string(v)) == "null" {
			missing = append(missing, name)
		}
	}
	return missing
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
