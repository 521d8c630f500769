// Package assets provides embedded static assets for the application.
//
// Web assets (page template, manifest, icon, service worker) live under web/
// and prompt templates under prompts/. Both are embedded at compile time.
package assets

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"text/template"
)

//go:embed web/manifest.json
var Manifest []byte

// ManifestMIMEType is the content type served for Manifest.
const ManifestMIMEType = "application/manifest+json"

//go:embed web/icon.svg
var Icon []byte

// IconMIMEType is the content type served for Icon.
const IconMIMEType = "image/svg+xml"

//go:embed web/index.html.tmpl web/sw.js.tmpl
var webFS embed.FS

// Page is the single-page UI template. It panics at init if the embedded
// template is malformed.
var Page = htmltemplate.Must(htmltemplate.ParseFS(webFS, "web/index.html.tmpl"))

var serviceWorkerTmpl = template.Must(template.ParseFS(webFS, "web/sw.js.tmpl"))

// ShellAssets are the paths, relative to the base path, that make up the
// application shell. The empty path is the base path itself.
var ShellAssets = []string{"", "index.html", "manifest.json"}

// ServiceWorkerData is the data injected into the service worker script.
type ServiceWorkerData struct {
	CacheName string
	Assets    []string
}

// RenderServiceWorker renders the browser service worker for the given cache
// generation and asset list.
func RenderServiceWorker(cacheName string, assets []string) ([]byte, error) {
	if cacheName == "" {
		return nil, fmt.Errorf("cache name is required")
	}
	var buf bytes.Buffer
	if err := serviceWorkerTmpl.Execute(&buf, ServiceWorkerData{CacheName: cacheName, Assets: assets}); err != nil {
		return nil, fmt.Errorf("failed to render service worker: %w", err)
	}
	return buf.Bytes(), nil
}
