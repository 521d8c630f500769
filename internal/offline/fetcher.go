package offline

import (
	"bytes"
	"context"
	"net/http"
	"time"
)

// Fetcher retrieves a response from the origin.
type Fetcher interface {
	Fetch(ctx context.Context, r *http.Request) (*Entry, error)
}

// HandlerFetcher fetches by invoking an in-process handler, used when the
// worker fronts the server that also serves the assets.
type HandlerFetcher struct {
	Handler http.Handler
}

func (f *HandlerFetcher) Fetch(ctx context.Context, r *http.Request) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := newBufferedResponse()
	f.Handler.ServeHTTP(w, r.WithContext(ctx))
	return &Entry{
		URL:      CacheKey(r.URL),
		Status:   w.status,
		Header:   w.header,
		Body:     w.body.Bytes(),
		StoredAt: time.Now(),
	}, nil
}

type bufferedResponse struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

// writeEntry replays an entry verbatim.
func writeEntry(w http.ResponseWriter, e *Entry) {
	h := w.Header()
	for k, vs := range e.Header {
		h[k] = append([]string(nil), vs...)
	}
	status := e.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(e.Body)
}
