package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"github.com/fpang/cctv-guardian/internal/presentation"
	"github.com/fpang/cctv-guardian/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type stateResponse struct {
	session.Snapshot
	View      *presentation.ResultView `json:"view,omitempty"`
	CacheName string                   `json:"cacheName"`
}

type addImagesResponse struct {
	Added    []session.ImageInfo `json:"added"`
	Rejected string              `json:"rejected,omitempty"`
}

type analyzeResponse struct {
	Result *analysis.Result         `json:"result"`
	View   *presentation.ResultView `json:"view"`
}

// GET /api/state
func (s *Server) handleAPIState(w http.ResponseWriter, r *http.Request) {
	snap := session.Snapshot{Settings: analysis.DefaultSettings(), Images: []session.ImageInfo{}}
	if c := s.current(r); c != nil {
		snap = c.Snapshot()
	}
	respondJSON(w, http.StatusOK, stateResponse{
		Snapshot:  snap,
		View:      presentation.NewResultView(snap.Result, imageRefs(snap.AnalyzedImages)),
		CacheName: s.cacheName,
	})
}

// POST /api/images
func (s *Server) handleAPIAddImages(w http.ResponseWriter, r *http.Request) {
	c := s.ensure(w, r)
	files, err := readUploads(w, r, s.maxUploadBytes)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	added, err := c.AddImages(files)
	resp := addImagesResponse{Added: added}
	if resp.Added == nil {
		resp.Added = []session.ImageInfo{}
	}
	if err != nil {
		resp.Rejected = err.Error()
	}
	if len(added) == 0 {
		respondJSON(w, http.StatusBadRequest, resp)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// DELETE /api/images/{id}
func (s *Server) handleAPIDeleteImage(w http.ResponseWriter, r *http.Request) {
	c := s.current(r)
	if c == nil {
		respondError(w, session.ErrImageNotFound)
		return
	}
	if err := c.RemoveImage(chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/settings
func (s *Server) handleAPIGetSettings(w http.ResponseWriter, r *http.Request) {
	settings := analysis.DefaultSettings()
	if c := s.current(r); c != nil {
		settings = c.Settings()
	}
	respondJSON(w, http.StatusOK, settings)
}

// PUT /api/settings
func (s *Server) handleAPIPutSettings(w http.ResponseWriter, r *http.Request) {
	var settings analysis.Settings
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&settings); err != nil {
		httpError(w, http.StatusBadRequest, "invalid settings: "+err.Error())
		return
	}
	c := s.ensure(w, r)
	c.UpdateSettings(settings)
	respondJSON(w, http.StatusOK, c.Settings())
}

// POST /api/analyze
func (s *Server) handleAPIAnalyze(w http.ResponseWriter, r *http.Request) {
	c := s.ensure(w, r)
	result, err := c.Analyze(r.Context())
	if err != nil {
		if !errors.Is(err, session.ErrAnalysisInProgress) {
			log.Warn().Err(err).Msg("Analysis failed")
		}
		respondError(w, err)
		return
	}
	snap := c.Snapshot()
	view := presentation.NewResultView(result, imageRefs(snap.AnalyzedImages))
	respondJSON(w, http.StatusOK, analyzeResponse{Result: result, View: view})
}

// POST /api/reset
func (s *Server) handleAPIReset(w http.ResponseWriter, r *http.Request) {
	if c := s.current(r); c != nil {
		c.Reset()
	}
	w.WriteHeader(http.StatusNoContent)
}
