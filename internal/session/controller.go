// Package session holds the per-browser state of the app: the uploaded
// screenshots, the analysis settings, and the latest result or error.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"github.com/fpang/cctv-guardian/internal/filehandler"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Sentinel errors returned by Controller.
var (
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrImageNotFound      = errors.New("image not found")
	ErrTooManyImages      = errors.New("too many images")
	ErrImageTooLarge      = errors.New("image too large")
)

// Analyzer runs one analysis. *analysis.Analyzer satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, images []analysis.Image, settings analysis.Settings) (*analysis.Result, error)
}

// Limits bound what a single session may hold.
type Limits struct {
	MaxImages           int
	MaxImageBytes       int64
	PreviewMaxDimension int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxImages:           12,
		MaxImageBytes:       20 << 20,
		PreviewMaxDimension: filehandler.DefaultPreviewMaxDimension,
	}
}

// File is an uploaded file before validation.
type File struct {
	Filename string
	Data     []byte
}

// Image is a validated screenshot held by a session.
type Image struct {
	ID         string
	Filename   string
	MIMEType   string
	Data       []byte
	Size       int64
	CapturedAt *time.Time
	Camera     string
	AddedAt    time.Time
}

// ImageInfo is the data-free view of an Image.
type ImageInfo struct {
	ID         string     `json:"id"`
	Filename   string     `json:"filename"`
	MIMEType   string     `json:"mimeType"`
	Size       int64      `json:"size"`
	CapturedAt *time.Time `json:"capturedAt,omitempty"`
	Camera     string     `json:"camera,omitempty"`
}

func (img *Image) info() ImageInfo {
	return ImageInfo{
		ID:         img.ID,
		Filename:   img.Filename,
		MIMEType:   img.MIMEType,
		Size:       img.Size,
		CapturedAt: img.CapturedAt,
		Camera:     img.Camera,
	}
}

type preview struct {
	data     []byte
	mimeType string
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	Images    []ImageInfo       `json:"images"`
	Settings  analysis.Settings `json:"settings"`
	Analyzing bool              `json:"analyzing"`
	Result    *analysis.Result  `json:"result,omitempty"`

	// AnalyzedImages is the ordered set the result's BestImageIndex refers to.
	AnalyzedImages []ImageInfo `json:"analyzedImages,omitempty"`
	AnalyzedAt     *time.Time  `json:"analyzedAt,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// Controller owns one session's state. All methods are safe for concurrent
// use; the analysis call runs without holding the lock.
type Controller struct {
	analyzer Analyzer
	limits   Limits

	mu         sync.Mutex
	images     []*Image
	analyzed   []*Image
	previews   map[string]preview
	settings   analysis.Settings
	result     *analysis.Result
	errMsg     string
	errKind    string
	busy       bool
	analyzedAt time.Time
	lastActive time.Time
}

// NewController creates an empty session with default settings.
func NewController(analyzer Analyzer, limits Limits) *Controller {
	return &Controller{
		analyzer:   analyzer,
		limits:     limits,
		previews:   make(map[string]preview),
		settings:   analysis.DefaultSettings(),
		lastActive: time.Now(),
	}
}

// touch must be called with mu held.
func (c *Controller) touch() {
	c.lastActive = time.Now()
}

// LastActive returns when the session was last used.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Busy reports whether an analysis is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// AddImages validates and appends files in order. Valid files are added even
// when others are rejected; the rejections are joined into the returned
// error and recorded as the session's error message. Any previous result
// and error are cleared.
func (c *Controller) AddImages(files []File) ([]ImageInfo, error) {
	type candidate struct {
		img *Image
		err error
	}
	// Sniffing and EXIF decoding happen outside the lock.
	candidates := make([]candidate, 0, len(files))
	for _, f := range files {
		img, err := c.newImage(f)
		candidates = append(candidates, candidate{img: img, err: err})
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	c.result = nil
	c.analyzed = nil
	c.errMsg, c.errKind = "", ""

	var added []ImageInfo
	var errs []error
	for _, cand := range candidates {
		if cand.err != nil {
			errs = append(errs, cand.err)
			continue
		}
		if c.limits.MaxImages > 0 && len(c.images) >= c.limits.MaxImages {
			errs = append(errs, fmt.Errorf("%s: %w (max %d)", cand.img.Filename, ErrTooManyImages, c.limits.MaxImages))
			continue
		}
		c.images = append(c.images, cand.img)
		added = append(added, cand.img.info())
	}

	log.Info().
		Int("added", len(added)).
		Int("rejected", len(errs)).
		Int("total", len(c.images)).
		Msg("Images added to session")

	if len(errs) > 0 {
		err := errors.Join(errs...)
		c.errMsg = "Some files were not added: " + err.Error()
		c.errKind = analysis.KindValidation.String()
		return added, err
	}
	return added, nil
}

func (c *Controller) newImage(f File) (*Image, error) {
	if c.limits.MaxImageBytes > 0 && int64(len(f.Data)) > c.limits.MaxImageBytes {
		return nil, fmt.Errorf("%s: %w (%d bytes, max %d)", f.Filename, ErrImageTooLarge, len(f.Data), c.limits.MaxImageBytes)
	}
	mimeType, err := filehandler.DetectImageMIME(f.Filename, f.Data)
	if err != nil {
		return nil, err
	}
	if err := filehandler.CheckDimensions(f.Data); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Filename, err)
	}

	img := &Image{
		ID:       uuid.NewString(),
		Filename: f.Filename,
		MIMEType: mimeType,
		Data:     f.Data,
		Size:     int64(len(f.Data)),
		AddedAt:  time.Now(),
	}
	if meta, err := filehandler.ExtractImageMetadata(f.Data); err == nil {
		if t, ok := meta.CapturedAt(); ok {
			img.CapturedAt = &t
		}
		img.Camera = meta.Camera()
	}
	return img, nil
}

// RemoveImage deletes an image by ID.
func (c *Controller) RemoveImage(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()

	for i, img := range c.images {
		if img.ID == id {
			c.images = append(c.images[:i:i], c.images[i+1:]...)
			if !c.inAnalyzedSet(id) {
				delete(c.previews, id)
			}
			return nil
		}
	}
	return ErrImageNotFound
}

func (c *Controller) inAnalyzedSet(id string) bool {
	for _, img := range c.analyzed {
		if img.ID == id {
			return true
		}
	}
	return false
}

// Images returns the current images in upload order.
func (c *Controller) Images() []ImageInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return infos(c.images)
}

func infos(images []*Image) []ImageInfo {
	out := make([]ImageInfo, len(images))
	for i, img := range images {
		out[i] = img.info()
	}
	return out
}

// Image returns an image by ID, searching the current images and then the
// set behind the latest result.
func (c *Controller) Image(id string) (*Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img := c.lookup(id)
	return img, img != nil
}

func (c *Controller) lookup(id string) *Image {
	for _, img := range c.images {
		if img.ID == id {
			return img
		}
	}
	for _, img := range c.analyzed {
		if img.ID == id {
			return img
		}
	}
	return nil
}

// Preview returns a displayable preview, generating and memoising it on first
// use. Images that cannot be decoded are served as uploaded.
func (c *Controller) Preview(id string) ([]byte, string, error) {
	c.mu.Lock()
	if p, ok := c.previews[id]; ok {
		c.mu.Unlock()
		return p.data, p.mimeType, nil
	}
	img := c.lookup(id)
	c.mu.Unlock()
	if img == nil {
		return nil, "", ErrImageNotFound
	}

	data, mimeType, err := filehandler.GeneratePreview(img.Data, img.MIMEType, c.limits.PreviewMaxDimension)
	if err != nil {
		log.Warn().Err(err).Str("image_id", id).Msg("Preview generation failed, serving original")
		data, mimeType = img.Data, img.MIMEType
	}

	c.mu.Lock()
	if c.lookup(id) != nil {
		c.previews[id] = preview{data: data, mimeType: mimeType}
	}
	c.mu.Unlock()
	return data, mimeType, nil
}

// Settings returns the current analysis settings.
func (c *Controller) Settings() analysis.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings replaces the analysis settings.
func (c *Controller) UpdateSettings(s analysis.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	c.settings = s
	log.Debug().
		Str("target", s.PrimaryTarget).
		Str("age", s.AgeRange).
		Bool("location_detection", s.LocationDetection).
		Msg("Session settings updated")
}

// Reset clears images, result and error. Settings are kept. A reset during
// an in-flight analysis discards that analysis's outcome.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch()
	c.images = nil
	c.analyzed = nil
	c.previews = make(map[string]preview)
	c.result = nil
	c.errMsg, c.errKind = "", ""
	c.analyzedAt = time.Time{}
}

// Analyze submits the current images and settings. At most one analysis runs
// per session; a concurrent call returns ErrAnalysisInProgress. Failures are
// recorded as the session's error and clear any previous result.
func (c *Controller) Analyze(ctx context.Context) (*analysis.Result, error) {
	c.mu.Lock()
	c.touch()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrAnalysisInProgress
	}
	if len(c.images) == 0 {
		err := analysis.NewValidationError(analysis.MsgNoImages)
		c.result, c.analyzed = nil, nil
		c.errMsg, c.errKind = err.UserMessage(), err.Kind.String()
		c.mu.Unlock()
		return nil, err
	}

	submitted := append([]*Image(nil), c.images...)
	settings := c.settings
	c.busy = true
	c.errMsg, c.errKind = "", ""
	c.mu.Unlock()

	images := make([]analysis.Image, len(submitted))
	for i, img := range submitted {
		images[i] = analysis.Image{
			Filename:   img.Filename,
			MIMEType:   img.MIMEType,
			Data:       img.Data,
			CapturedAt: img.CapturedAt,
		}
	}

	result, err := c.analyzer.Analyze(ctx, images, settings)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.touch()

	if !sameImages(submitted, c.images) {
		// Reset or removal while the call was in flight.
		log.Info().Msg("Session changed during analysis, discarding outcome")
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	if err != nil {
		c.result, c.analyzed = nil, nil
		c.errMsg = analysis.UserMessage(err)
		if kind, ok := analysis.KindOf(err); ok {
			c.errKind = kind.String()
		}
		return nil, err
	}

	c.result = result
	c.analyzed = submitted
	c.analyzedAt = time.Now()
	return result, nil
}

func sameImages(a, b []*Image) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Images:    infos(c.images),
		Settings:  c.settings,
		Analyzing: c.busy,
		Error:     c.errMsg,
		ErrorKind: c.errKind,
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
		s.AnalyzedImages = infos(c.analyzed)
		at := c.analyzedAt
		s.AnalyzedAt = &at
	}
	return s
}
