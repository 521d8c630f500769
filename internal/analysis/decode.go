package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/fpang/cctv-guardian/internal/jsonutil"
)

// DecodeResult strictly decodes a model reply for a request of imageCount
// images. It never returns a partially populated result: any missing required
// field, type mismatch, or out-of-range value is a KindDecode error.
func DecodeResult(raw string, imageCount int) (*Result, error) {
	fields, err := jsonutil.DecodeObject(raw)
	if err != nil {
		return nil, decodeError(err)
	}

	if missing := jsonutil.MissingFields(fields, requiredFields...); len(missing) > 0 {
		return nil, decodeError(fmt.Errorf("missing required field(s): %s", strings.Join(missing, ", ")))
	}

	var r Result
	if err := decodeField(fields, "location", &r.Location); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "targetDetected", &r.TargetDetected); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "activityDescription", &r.ActivityDescription); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "isWatchingScreen", &r.IsWatchingScreen); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "screenDevice", &r.ScreenDevice); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "additionalNotes", &r.AdditionalNotes); err != nil {
		return nil, err
	}

	var index json.Number
	if err := decodeField(fields, "bestImageIndex", &index); err != nil {
		return nil, err
	}
	n, err := index.Int64()
	if err != nil {
		// Accept integral floats such as 1.0.
		f, ferr := index.Float64()
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return nil, decodeError(fmt.Errorf("bestImageIndex %q is not an integer", index))
		}
		n = int64(f)
	}
	if n < 0 || n >= int64(imageCount) {
		return nil, decodeError(fmt.Errorf("bestImageIndex %d out of range [0, %d)", n, imageCount))
	}
	r.BestImageIndex = int(n)

	if err := decodeField(fields, "confidence", &r.Confidence); err != nil {
		return nil, err
	}
	if math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1 {
		return nil, decodeError(fmt.Errorf("confidence %v out of range [0, 1]", r.Confidence))
	}

	return &r, nil
}

// decodeField unmarshals fields[name] into dst. Absent and null optional
// fields leave dst at its zero value.
func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	v, ok := fields[name]
	if !ok || strings.TrimSpace(string(v)) == "null" {
		return nil
	}
	if n, isNum := dst.(*json.Number); isNum {
		// json.Number accepts quoted strings; require a bare number.
		s := strings.TrimSpace(string(v))
		if s == "" || s[0] == '"' {
			return decodeError(fmt.Errorf("field %s: expected number, got %s", name, s))
		}
		*n = json.Number(s)
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return decodeError(fmt.Errorf("field %s: %w", name, err))
	}
	return nil
}
