package filehandler

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultPreviewMaxDimension is the maximum width or height of a preview.
const DefaultPreviewMaxDimension = 400

// previewJPEGQuality is used for previews and for downscaled uploads.
const previewJPEGQuality = 85

// GeneratePreview creates a displayable preview of an uploaded image.
// Returns the preview bytes, MIME type, and any error.
//
// Strategy:
//   - JPEG/PNG/GIF/WebP: decode in pure Go, resize, encode as JPEG
//   - HEIC/HEIF: convert with ffmpeg when installed, otherwise serve the original
func GeneratePreview(data []byte, mimeType string, maxDimension int) ([]byte, string, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultPreviewMaxDimension
	}

	switch mimeType {
	case "image/heic", "image/heif":
		return generatePreviewHEIC(data, mimeType, maxDimension)
	}

	if err := CheckDimensions(data); err != nil {
		return nil, "", err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	out, err := encodeJPEG(resize(img, maxDimension))
	if err != nil {
		return nil, "", err
	}

	log.Debug().
		Str("mime_type", mimeType).
		Int("input_size", len(data)).
		Int("output_size", len(out)).
		Msg("Preview generated (pure Go)")

	return out, "image/jpeg", nil
}

// Downscale shrinks an image so neither side exceeds maxDimension. Images
// already within bounds are returned unchanged, as are formats that cannot
// be decoded in pure Go. The returned MIME type describes the returned bytes.
func Downscale(data []byte, mimeType string, maxDimension int) ([]byte, string, bool) {
	if maxDimension <= 0 {
		return data, mimeType, false
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Str("mime_type", mimeType).Msg("Cannot decode image for downscale, sending original")
		return data, mimeType, false
	}
	if cfg.Width <= maxDimension && cfg.Height <= maxDimension {
		return data, mimeType, false
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		log.Warn().
			Int("width", cfg.Width).
			Int("height", cfg.Height).
			Msg("Image too large to decode, sending original")
		return data, mimeType, false
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Warn().Err(err).Str("mime_type", mimeType).Msg("Image decode failed, sending original")
		return data, mimeType, false
	}

	out, err := encodeJPEG(resize(img, maxDimension))
	if err != nil {
		log.Warn().Err(err).Msg("JPEG encode failed, sending original")
		return data, mimeType, false
	}

	log.Debug().
		Int("orig_width", cfg.Width).
		Int("orig_height", cfg.Height).
		Int("max_dimension", maxDimension).
		Int("output_size", len(out)).
		Msg("Image downscaled")

	return out, "image/jpeg", true
}

func resize(img image.Image, maxDimension int) image.Image {
	bounds := img.Bounds()
	newWidth, newHeight := calculateDimensions(bounds.Dx(), bounds.Dy(), maxDimension)
	if newWidth == bounds.Dx() && newHeight == bounds.Dy() {
		return img
	}
	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
	return resized
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: previewJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// generatePreviewHEIC converts HEIC/HEIF with ffmpeg. Falls back to the
// original bytes when ffmpeg is missing or fails.
func generatePreviewHEIC(data []byte, mimeType string, maxDimension int) ([]byte, string, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		log.Debug().Msg("ffmpeg not found, serving original HEIC as preview")
		return data, mimeType, nil
	}

	in, err := os.CreateTemp("", "preview-*.heic")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create temp file: %w", err)
	}
	inPath := in.Name()
	defer os.Remove(inPath)
	if _, err := in.Write(data); err != nil {
		in.Close()
		return nil, "", fmt.Errorf("failed to write temp file: %w", err)
	}
	in.Close()

	outPath := inPath + ".jpg"
	defer os.Remove(outPath)

	vf := fmt.Sprintf("scale='min(%d,iw)':-2", maxDimension)
	cmd := exec.Command(ffmpegPath, "-i", inPath, "-vf", vf, "-frames:v", "1", "-y", outPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		log.Warn().
			Err(err).
			Str("output", string(output)).
			Msg("ffmpeg HEIC conversion failed, serving original")
		return data, mimeType, nil
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read converted preview: %w", err)
	}
	return out, "image/jpeg", nil
}

// calculateDimensions scales width and height to fit maxDimension,
// preserving aspect ratio.
func calculateDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newHeight := int(float64(height) * float64(maxDimension) / float64(width))
		return maxDimension, max(newHeight, 1)
	}

	newWidth := int(float64(width) * float64(maxDimension) / float64(height))
	return max(newWidth, 1), maxDimension
}
