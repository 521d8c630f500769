package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/fpang/cctv-guardian/internal/metrics"
	"github.com/rs/zerolog/log"
)

// State is a worker lifecycle state.
type State int

const (
	// StateParsed is a fresh worker that has not installed.
	StateParsed State = iota
	// StateInstalling is populating its cache generation.
	StateInstalling
	// StateInstalled has a complete generation waiting to activate.
	StateInstalled
	// StateActivating is removing stale generations.
	StateActivating
	// StateActive serves fetches from its generation.
	StateActive
	// StateRedundant failed to install and will never activate.
	StateRedundant
)

func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}

// Outcome describes how a fetch was answered.
type Outcome int

const (
	// OutcomePassthrough means the worker did not intercept the request.
	OutcomePassthrough Outcome = iota
	// OutcomeCacheHit was answered from the cache.
	OutcomeCacheHit
	// OutcomeNetwork was answered by the origin.
	OutcomeNetwork
	// OutcomeNoResponse means neither cache nor origin could answer.
	OutcomeNoResponse
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassthrough:
		return "passthrough"
	case OutcomeCacheHit:
		return "cache_hit"
	case OutcomeNetwork:
		return "network"
	case OutcomeNoResponse:
		return "no_response"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when a lifecycle step is attempted from
// the wrong state.
var ErrInvalidTransition = errors.New("invalid worker state transition")

// Worker owns one cache generation and its lifecycle.
type Worker struct {
	storage   Storage
	fetcher   Fetcher
	cacheName string
	assets    []string

	// networkFirst selects GET requests answered from the origin first,
	// with the cache as offline fallback.
	networkFirst func(*http.Request) bool

	transition sync.Mutex

	mu    sync.RWMutex
	state State
	cache Cache
}

// Option configures a Worker.
type Option func(*Worker)

// WithNetworkFirst sets the predicate for network-first requests.
func WithNetworkFirst(match func(*http.Request) bool) Option {
	return func(w *Worker) { w.networkFirst = match }
}

// NewWorker creates a worker for cacheName that installs assets (request
// paths, e.g. "/", "/index.html") from fetcher.
func NewWorker(storage Storage, fetcher Fetcher, cacheName string, assets []string, opts ...Option) *Worker {
	w := &Worker{
		storage:   storage,
		fetcher:   fetcher,
		cacheName: cacheName,
		assets:    append([]string(nil), assets...),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// CacheName returns the worker's generation name.
func (w *Worker) CacheName() string {
	return w.cacheName
}

// Assets returns the shell asset paths.
func (w *Worker) Assets() []string {
	return append([]string(nil), w.assets...)
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Install fetches every shell asset, then writes them into the worker's
// generation. Any fetch failure or non-2xx response leaves storage untouched,
// marks the worker redundant, and returns the error. A write failure deletes
// the generation only if this install created it, so reinstalling a live
// generation never loses it.
func (w *Worker) Install(ctx context.Context) error {
	w.transition.Lock()
	defer w.transition.Unlock()

	if st := w.State(); st != StateParsed {
		return fmt.Errorf("%w: install from %s", ErrInvalidTransition, st)
	}
	w.setState(StateInstalling)
	start := time.Now()

	log.Info().
		Str("cache", w.cacheName).
		Int("assets", len(w.assets)).
		Msg("Installing offline asset cache")

	existed := w.hasGeneration(ctx)
	cache, err := w.populate(ctx)

	m := metrics.New(metrics.Namespace).
		Dimension("Operation", "offlineInstall").
		Since("OfflineInstallMs", start).
		Metric("OfflineAssetCount", float64(len(w.assets)), metrics.UnitCount)
	if err != nil {
		m.Count("OfflineInstallFailures")
	}
	m.Flush()

	if err != nil {
		if !existed {
			if _, delErr := w.storage.Delete(context.WithoutCancel(ctx), w.cacheName); delErr != nil {
				log.Warn().Err(delErr).Str("cache", w.cacheName).Msg("Failed to delete partial cache generation")
			}
		}
		w.setState(StateRedundant)
		log.Error().Err(err).Str("cache", w.cacheName).Msg("Offline cache install failed")
		return err
	}

	w.mu.Lock()
	w.cache = cache
	w.state = StateInstalled
	w.mu.Unlock()

	log.Info().Str("cache", w.cacheName).Dur("duration", time.Since(start)).Msg("Offline cache installed")
	return nil
}

// hasGeneration reports whether the worker's generation is already in
// storage. A listing error counts as present so nothing is deleted.
func (w *Worker) hasGeneration(ctx context.Context) bool {
	names, err := w.storage.Keys(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list cache generations")
		return true
	}
	return slices.Contains(names, w.cacheName)
}

// populate fetches every asset before writing any, matching the browser's
// all-or-nothing cache.addAll.
func (w *Worker) populate(ctx context.Context) (Cache, error) {
	entries := make([]*Entry, 0, len(w.assets))
	for _, asset := range w.assets {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset, nil)
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", asset, err)
		}
		entry, err := w.fetcher.Fetch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", asset, err)
		}
		if entry.Status < 200 || entry.Status > 299 {
			return nil, fmt.Errorf("fetch %s: status %d", asset, entry.Status)
		}
		entry.URL = CacheKey(req.URL)
		entries = append(entries, entry)
	}

	cache, err := w.storage.Open(ctx, w.cacheName)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", w.cacheName, err)
	}
	for _, entry := range entries {
		if err := cache.Put(ctx, entry); err != nil {
			return nil, fmt.Errorf("store %s: %w", entry.URL, err)
		}
	}
	return cache, nil
}

// Activate deletes every generation other than the worker's own and starts
// serving. Only valid after a successful Install.
func (w *Worker) Activate(ctx context.Context) error {
	w.transition.Lock()
	defer w.transition.Unlock()

	if st := w.State(); st != StateInstalled {
		return fmt.Errorf("%w: activate from %s", ErrInvalidTransition, st)
	}
	w.setState(StateActivating)

	names, err := w.storage.Keys(ctx)
	if err != nil {
		w.setState(StateInstalled)
		return fmt.Errorf("list caches: %w", err)
	}
	deleted := 0
	for _, name := range names {
		if name == w.cacheName {
			continue
		}
		if _, err := w.storage.Delete(ctx, name); err != nil {
			w.setState(StateInstalled)
			return fmt.Errorf("delete cache %s: %w", name, err)
		}
		deleted++
		log.Info().Str("cache", name).Msg("Deleted stale cache generation")
	}

	w.setState(StateActive)
	log.Info().Str("cache", w.cacheName).Int("deleted", deleted).Msg("Offline cache active")
	return nil
}

// Start installs and activates.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Install(ctx); err != nil {
		return err
	}
	return w.Activate(ctx)
}

// HandleFetch answers r the way the browser worker does: non-GET and
// pre-activation requests pass through; GETs are served from the cache
// first and then the origin. Origin failure yields OutcomeNoResponse with a
// nil entry, never an error.
func (w *Worker) HandleFetch(ctx context.Context, r *http.Request) (*Entry, Outcome) {
	return w.handleFetch(ctx, r, w.fetcher)
}

func (w *Worker) handleFetch(ctx context.Context, r *http.Request, origin Fetcher) (*Entry, Outcome) {
	if r.Method != http.MethodGet {
		return nil, OutcomePassthrough
	}
	w.mu.RLock()
	state, cache := w.state, w.cache
	w.mu.RUnlock()
	if state != StateActive || cache == nil {
		return nil, OutcomePassthrough
	}

	key := CacheKey(r.URL)
	if w.networkFirst != nil && w.networkFirst(r) {
		if e, err := origin.Fetch(ctx, r); err == nil {
			return e, OutcomeNetwork
		}
		if e, ok := w.match(ctx, cache, key); ok {
			return e, OutcomeCacheHit
		}
		return nil, OutcomeNoResponse
	}

	if e, ok := w.match(ctx, cache, key); ok {
		return e, OutcomeCacheHit
	}
	e, err := origin.Fetch(ctx, r)
	if err != nil {
		log.Debug().Err(err).Str("url", key).Msg("Origin fetch failed, no response")
		return nil, OutcomeNoResponse
	}
	return e, OutcomeNetwork
}

func (w *Worker) match(ctx context.Context, cache Cache, key string) (*Entry, bool) {
	e, ok, err := cache.Match(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("url", key).Msg("Cache lookup failed")
		return nil, false
	}
	return e, ok
}

// Middleware fronts next with the worker. Cache hits are replayed verbatim;
// everything else is answered by next.
func (w *Worker) Middleware(next http.Handler) http.Handler {
	origin := &HandlerFetcher{Handler: next}
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || w.State() != StateActive {
			next.ServeHTTP(rw, r)
			return
		}
		entry, outcome := w.handleFetch(r.Context(), r, origin)
		switch outcome {
		case OutcomeCacheHit:
			rw.Header().Set("X-Offline-Cache", "hit")
			writeEntry(rw, entry)
		case OutcomeNetwork:
			writeEntry(rw, entry)
		case OutcomeNoResponse:
			http.Error(rw, "offline and not cached", http.StatusGatewayTimeout)
		default:
			next.ServeHTTP(rw, r)
		}
	})
}
