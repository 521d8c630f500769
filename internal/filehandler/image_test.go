package filehandler

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// pngHeader returns a PNG signature and IHDR chunk declaring width x height,
// with no pixel data behind it.
func pngHeader(width, height uint32) []byte {
	ihdr := make([]byte, 17)
	copy(ihdr, "IHDR")
	binary.BigEndian.PutUint32(ihdr[4:], width)
	binary.BigEndian.PutUint32(ihdr[8:], height)
	ihdr[12] = 8 // bit depth
	ihdr[13] = 2 // truecolor

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(13))
	buf.Write(ihdr)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr))
	return buf.Bytes()
}

func TestCheckDimensions(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"small png", testPNG(t, 8, 8), false},
		{"at limit", pngHeader(10_000, 5_000), false},
		{"over limit", pngHeader(16_000, 16_000), true},
		{"one wide row", pngHeader(60_000_000, 1), true},
		{"undecodable header", []byte("heic-bytes"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDimensions(tt.data)
			if tt.wantErr != errors.Is(err, ErrTooManyPixels) {
				t.Errorf("CheckDimensions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetMIMEType(t *testing.T) {
	tests := []struct {
		ext     string
		want    string
		wantErr bool
	}{
		{".jpg", "image/jpeg", false},
		{".JPEG", "image/jpeg", false},
		{".png", "image/png", false},
		{".webp", "image/webp", false},
		{".heic", "image/heic", false},
		{".mp4", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			got, err := GetMIMEType(tt.ext)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetMIMEType(%q) error = %v, wantErr %v", tt.ext, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetMIMEType(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestDetectImageMIME(t *testing.T) {
	pngData := testPNG(t, 4, 4)
	heic := append([]byte{0, 0, 0, 0x18}, []byte("ftypheic\x00\x00\x00\x00")...)

	tests := []struct {
		name     string
		filename string
		data     []byte
		want     string
		wantErr  bool
	}{
		{"sniffed png", "cam1.png", pngData, "image/png", false},
		{"sniffed png with wrong extension", "cam1.jpg", pngData, "image/png", false},
		{"heic by extension", "cam2.HEIC", heic, "image/heic", false},
		{"text file", "notes.txt", []byte("hello world"), "", true},
		{"html disguised as jpg", "evil.jpg", []byte("<html><body>x</body></html>"), "", true},
		{"empty", "empty.png", nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectImageMIME(tt.filename, tt.data)
			if tt.wantErr {
				if !errors.Is(err, ErrNotImage) {
					t.Fatalf("DetectImageMIME() error = %v, want ErrNotImage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectImageMIME() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectImageMIME() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsImageMIME(t *testing.T) {
	if !IsImageMIME("image/png") || !IsImageMIME("IMAGE/JPEG") {
		t.Error("IsImageMIME() = false for image types")
	}
	if IsImageMIME("text/plain") || IsImageMIME("") {
		t.Error("IsImageMIME() = true for non-image types")
	}
}

func TestExtractImageMetadata_NoEXIF(t *testing.T) {
	if _, err := ExtractImageMetadata([]byte("not an image")); err == nil {
		t.Error("ExtractImageMetadata() expected error for garbage input")
	}
}

func TestImageMetadataCapturedAt(t *testing.T) {
	var nilMeta *ImageMetadata
	if _, ok := nilMeta.CapturedAt(); ok {
		t.Error("nil metadata should report no capture time")
	}
	m := &ImageMetadata{CameraMake: " Hikvision", CameraModel: "DS-2CD "}
	if _, ok := m.CapturedAt(); ok {
		t.Error("metadata without date should report no capture time")
	}
	m.CameraMake, m.CameraModel = "Hikvision", "DS-2CD"
	if got := m.Camera(); got != "Hikvision DS-2CD" {
		t.Errorf("Camera() = %q", got)
	}
	if got := (&ImageMetadata{}).Camera(); got != "" {
		t.Errorf("Camera() = %q, want empty", got)
	}
}
