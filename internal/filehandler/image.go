// Package filehandler validates uploaded CCTV screenshots, reads their EXIF
// metadata, and produces resized copies for previews and model upload.
package filehandler

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// SupportedImageExtensions maps file extensions to MIME types.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// ErrNotImage is returned when an upload is not a supported image.
var ErrNotImage = errors.New("file is not a supported image")

// ErrTooManyPixels is returned when an image header declares more than
// MaxImagePixels.
var ErrTooManyPixels = errors.New("image dimensions exceed limit")

// MaxImagePixels caps the decoded area of any image. A full decode allocates
// four bytes per pixel regardless of the compressed size.
const MaxImagePixels = 50_000_000

// CheckDimensions reads only the image header and rejects images larger than
// MaxImagePixels. Formats the standard decoders cannot read (HEIC) pass.
func CheckDimensions(data []byte) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return fmt.Errorf("%s %dx%d: %w (max %d pixels)", format, cfg.Width, cfg.Height, ErrTooManyPixels, MaxImagePixels)
	}
	return nil
}

// GetMIMEType returns the MIME type for a file extension.
func GetMIMEType(ext string) (string, error) {
	ext = strings.ToLower(ext)
	if mime, ok := SupportedImageExtensions[ext]; ok {
		return mime, nil
	}
	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// IsImage reports whether the extension is a supported image type.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}

// IsImageMIME reports whether a MIME type names an image.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

// DetectImageMIME determines the MIME type of an uploaded file. Content
// sniffing wins; the extension table covers formats the sniffer does not
// know (HEIC/HEIF).
func DetectImageMIME(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%s: empty file: %w", filename, ErrNotImage)
	}

	sniffed := http.DetectContentType(data)
	if semi := strings.IndexByte(sniffed, ';'); semi >= 0 {
		sniffed = sniffed[:semi]
	}
	if IsImageMIME(sniffed) {
		return sniffed, nil
	}

	if mime, err := GetMIMEType(filepath.Ext(filename)); err == nil {
		// Only binary payloads the sniffer cannot place fall back to the extension.
		if sniffed == "application/octet-stream" {
			return mime, nil
		}
	}

	log.Debug().
		Str("file", filename).
		Str("sniffed", sniffed).
		Msg("Rejected non-image upload")
	return "", fmt.Errorf("%s (%s): %w", filename, sniffed, ErrNotImage)
}

// ImageMetadata contains EXIF metadata extracted from a screenshot.
type ImageMetadata struct {
	DateTaken time.Time
	HasDate   bool

	CameraMake  string
	CameraModel string
}

// ExtractImageMetadata reads EXIF metadata from image bytes using the
// imagemeta library. Screenshots frequently carry no EXIF block; callers treat
// an error as "no metadata".
func ExtractImageMetadata(data []byte) (*ImageMetadata, error) {
	exifData, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	metadata := &ImageMetadata{}

	// Priority: DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		metadata.DateTaken = exifData.DateTimeOriginal()
		metadata.HasDate = true
	case !exifData.CreateDate().IsZero():
		metadata.DateTaken = exifData.CreateDate()
		metadata.HasDate = true
	case !exifData.ModifyDate().IsZero():
		metadata.DateTaken = exifData.ModifyDate()
		metadata.HasDate = true
	}

	metadata.CameraMake = strings.TrimSpace(exifData.Make)
	metadata.CameraModel = strings.TrimSpace(exifData.Model)

	log.Debug().
		Bool("has_date", metadata.HasDate).
		Str("camera", metadata.Camera()).
		Msg("Image metadata extraction complete")

	return metadata, nil
}

// Camera returns "make model" trimmed, or "" when neither is known.
func (m *ImageMetadata) Camera() string {
	return strings.TrimSpace(m.CameraMake + " " + m.CameraModel)
}

// CapturedAt returns the capture time if known.
func (m *ImageMetadata) CapturedAt() (time.Time, bool) {
	if m == nil || !m.HasDate {
		return time.Time{}, false
	}
	return m.DateTaken, true
}
