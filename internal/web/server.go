// Package web serves the CCTV Guardian UI and its JSON API.
package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/fpang/cctv-guardian/internal/assets"
	"github.com/fpang/cctv-guardian/internal/offline"
	"github.com/fpang/cctv-guardian/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Options configures a Server.
type Options struct {
	// BasePath is where the app is mounted, e.g. "/" or "/guardian/".
	BasePath string
	// CacheName is the offline cache generation advertised to browsers.
	CacheName string
	// MaxUploadBytes bounds a single upload request body. Zero means no limit.
	MaxUploadBytes int64
}

// Server holds the HTTP handlers. Build it with New, then call Handler.
type Server struct {
	registry       *session.Registry
	base           string
	cacheName      string
	maxUploadBytes int64
	serviceWorker  []byte

	origin http.Handler
	worker *offline.Worker
}

// New builds the routes for registry.
func New(registry *session.Registry, opts Options) (*Server, error) {
	base := normalizeBase(opts.BasePath)
	sw, err := assets.RenderServiceWorker(opts.CacheName, assets.ShellAssets)
	if err != nil {
		return nil, err
	}
	s := &Server{
		registry:       registry,
		base:           base,
		cacheName:      opts.CacheName,
		maxUploadBytes: opts.MaxUploadBytes,
		serviceWorker:  sw,
	}
	s.origin = s.routes()
	return s, nil
}

func normalizeBase(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// path joins a route onto the base path.
func (s *Server) path(route string) string {
	return s.base + strings.TrimPrefix(route, "/")
}

// ShellAssets returns the request paths that make up the offline shell.
func (s *Server) ShellAssets() []string {
	out := make([]string, len(assets.ShellAssets))
	for i, a := range assets.ShellAssets {
		out[i] = s.path(a)
	}
	return out
}

// IsPage reports whether r asks for the HTML page. Pages are rendered per
// session, so the offline worker serves them network-first.
func (s *Server) IsPage(r *http.Request) bool {
	return r.URL.Path == s.base || r.URL.Path == s.path("index.html")
}

// Origin returns the routes without the offline worker in front. The worker
// installs its shell from here.
func (s *Server) Origin() http.Handler {
	return s.origin
}

// Handler returns the full handler chain. worker may be nil.
func (s *Server) Handler(worker *offline.Worker) http.Handler {
	s.worker = worker
	h := s.origin
	if worker != nil {
		h = worker.Middleware(h)
	}
	return chi.Chain(
		middleware.RequestID,
		middleware.RealIP,
		withLogging,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowOriginFunc:  allowLocalOrigin,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	).Handler(h)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(securityHeaders)

	r.Get(s.base, s.handlePage)
	r.Get(s.path("index.html"), s.handlePage)
	r.Get(s.path("manifest.json"), serveStatic(assets.Manifest, assets.ManifestMIMEType))
	r.Get(s.path("icon.svg"), serveStatic(assets.Icon, assets.IconMIMEType))
	r.Get(s.path("sw.js"), s.handleServiceWorker)

	r.Post(s.path("upload"), s.handleUpload)
	r.Post(s.path("images/{id}/delete"), s.handleDeleteImage)
	r.Get(s.path("images/{id}/preview"), s.handlePreview)
	r.Post(s.path("analyze"), s.handleAnalyze)
	r.Post(s.path("reset"), s.handleReset)
	r.Post(s.path("settings"), s.handleSettings)

	r.Get(s.path("api/state"), s.handleAPIState)
	r.Post(s.path("api/images"), s.handleAPIAddImages)
	r.Delete(s.path("api/images/{id}"), s.handleAPIDeleteImage)
	r.Get(s.path("api/settings"), s.handleAPIGetSettings)
	r.Put(s.path("api/settings"), s.handleAPIPutSettings)
	r.Post(s.path("api/analyze"), s.handleAPIAnalyze)
	r.Post(s.path("api/reset"), s.handleAPIReset)
	r.Get(s.path("healthz"), s.handleHealth)

	return r
}

// --- Session cookie ---

// current returns the caller's session without creating one.
func (s *Server) current(r *http.Request) *session.Controller {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil {
		return nil
	}
	c, _ := s.registry.Get(cookie.Value)
	return c
}

// ensure returns the caller's session, creating it and setting the cookie
// when needed.
func (s *Server) ensure(w http.ResponseWriter, r *http.Request) *session.Controller {
	var id string
	if cookie, err := r.Cookie(session.CookieName); err == nil {
		id = cookie.Value
	}
	newID, c, created := s.registry.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    newID,
			Path:     s.base,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return c
}

// --- Static assets ---

func serveStatic(data []byte, mimeType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", mimeType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(data)
	}
}

func (s *Server) handleServiceWorker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Service-Worker-Allowed", s.base)
	_, _ = w.Write(s.serviceWorker)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":   "ok",
		"cache":    s.cacheName,
		"sessions": s.registry.Len(),
	}
	if s.worker != nil {
		body["offline"] = s.worker.State().String()
	}
	respondJSON(w, http.StatusOK, body)
}

// --- Middleware ---

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' blob: data:; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; connect-src 'self'; worker-src 'self'; manifest-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		evt := log.Debug()
		if strings.Contains(r.URL.Path, "/api/") || r.Method != http.MethodGet {
			evt = log.Info()
		}
		if ww.Status() >= http.StatusInternalServerError {
			evt = log.Warn()
		}
		evt.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("offline_cache", ww.Header().Get("X-Offline-Cache")).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// allowLocalOrigin only admits localhost origins.
func allowLocalOrigin(_ *http.Request, origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") ||
		strings.HasPrefix(origin, "http://127.0.0.1:") ||
		origin == "http://localhost" || origin == "http://127.0.0.1"
}

// redirectHome sends form posts back to the page.
func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.base, http.StatusSeeOther)
}
