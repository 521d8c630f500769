package analysis

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fpang/cctv-guardian/internal/filehandler"
)

// LoadImageFile reads a screenshot from disk for the CLI and MCP surfaces.
// maxBytes <= 0 disables the size check.
func LoadImageFile(path string, maxBytes int64) (Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to access %s: %w", path, err)
	}
	if info.IsDir() {
		return Image{}, fmt.Errorf("%s is a directory", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return Image{}, fmt.Errorf("%s is too large (%d bytes, max %d)", path, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := filepath.Base(path)
	mimeType, err := filehandler.DetectImageMIME(name, data)
	if err != nil {
		return Image{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := filehandler.CheckDimensions(data); err != nil {
		return Image{}, &Error{
			Kind:    KindValidation,
			Message: fmt.Sprintf("%s is too large to analyze.", name),
			Err:     err,
		}
	}

	img := Image{Filename: name, MIMEType: mimeType, Data: data}
	if meta, err := filehandler.ExtractImageMetadata(data); err == nil {
		if t, ok := meta.CapturedAt(); ok {
			img.CapturedAt = &t
		}
	}
	return img, nil
}

// LoadImageFiles loads paths in order. The first failure aborts.
func LoadImageFiles(paths []string, maxBytes int64) ([]Image, error) {
	images := make([]Image, 0, len(paths))
	for _, p := range paths {
		img, err := LoadImageFile(p, maxBytes)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}
