package web

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"github.com/fpang/cctv-guardian/internal/assets"
	"github.com/fpang/cctv-guardian/internal/presentation"
	"github.com/fpang/cctv-guardian/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type pageImage struct {
	ID         string
	Filename   string
	PreviewURL string
}

type resultData struct {
	presentation.ResultView
	SelectedPreviewURL string
}

type pageData struct {
	Base         string
	HasImages    bool
	Images       []pageImage
	Analyzing    bool
	Error        string
	Result       *resultData
	ShowSettings bool
	Settings     analysis.Settings
}

func (s *Server) previewURL(id string) string {
	return s.path("images/" + id + "/preview")
}

// buildPage assembles template data from a snapshot. snap may be the zero
// value for visitors without a session.
func (s *Server) buildPage(snap session.Snapshot) pageData {
	data := pageData{
		Base:      s.base,
		HasImages: len(snap.Images) > 0,
		Analyzing: snap.Analyzing,
		Error:     snap.Error,
		Settings:  snap.Settings,
	}
	for _, img := range snap.Images {
		data.Images = append(data.Images, pageImage{
			ID:         img.ID,
			Filename:   img.Filename,
			PreviewURL: s.previewURL(img.ID),
		})
	}
	if view := presentation.NewResultView(snap.Result, imageRefs(snap.AnalyzedImages)); view != nil {
		rd := &resultData{ResultView: *view}
		if view.HasSelection {
			rd.SelectedPreviewURL = s.previewURL(view.SelectedImageID)
		}
		data.Result = rd
	}
	return data
}

func imageRefs(images []session.ImageInfo) []presentation.ImageRef {
	refs := make([]presentation.ImageRef, len(images))
	for i, img := range images {
		refs[i] = presentation.ImageRef{ID: img.ID, Filename: img.Filename}
	}
	return refs
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	snap := session.Snapshot{Settings: analysis.DefaultSettings()}
	if c := s.current(r); c != nil {
		snap = c.Snapshot()
	}
	data := s.buildPage(snap)
	data.ShowSettings = r.URL.Query().Get("settings") == "open"

	var buf bytes.Buffer
	if err := assets.Page.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("Failed to render page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	c := s.ensure(w, r)
	files, err := readUploads(w, r, s.maxUploadBytes)
	if err != nil {
		log.Warn().Err(err).Msg("Upload rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	added, err := c.AddImages(files)
	if err != nil {
		log.Warn().Err(err).Int("added", len(added)).Msg("Some uploads were rejected")
	}
	s.redirectHome(w, r)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	c := s.current(r)
	if c == nil {
		s.redirectHome(w, r)
		return
	}
	if err := c.RemoveImage(chi.URLParam(r, "id")); err != nil && !errors.Is(err, session.ErrImageNotFound) {
		log.Warn().Err(err).Msg("Failed to remove image")
	}
	s.redirectHome(w, r)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	c := s.current(r)
	if c == nil {
		http.NotFound(w, r)
		return
	}
	data, mimeType, err := c.Preview(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = w.Write(data)
}

// handleAnalyze runs the analysis inline and redirects back to the page.
// Outcomes, including failures, are recorded on the session.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	c := s.ensure(w, r)
	if _, err := c.Analyze(r.Context()); err != nil {
		log.Warn().Err(err).Msg("Analysis failed")
	}
	s.redirectHome(w, r)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if c := s.current(r); c != nil {
		c.Reset()
	}
	s.redirectHome(w, r)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	c := s.ensure(w, r)
	c.UpdateSettings(settingsFromForm(r))
	s.redirectHome(w, r)
}

// settingsFromForm reads the settings form. Text fields are taken as typed;
// an unchecked box is absent from the form.
func settingsFromForm(r *http.Request) analysis.Settings {
	return analysis.Settings{
		PrimaryTarget:     strings.TrimSpace(r.PostForm.Get("primaryTarget")),
		AgeRange:          strings.TrimSpace(r.PostForm.Get("ageRange")),
		ActivityFocus:     strings.TrimSpace(r.PostForm.Get("activityFocus")),
		LocationDetection: r.PostForm.Get("locationDetection") == "on",
	}
}
