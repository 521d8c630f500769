package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CookieName is the cookie carrying the session ID.
const CookieName = "guardian_session"

// DefaultIdleTimeout is how long an unused session is kept.
const DefaultIdleTimeout = 30 * time.Minute

// Registry maps session IDs to controllers and expires idle sessions.
type Registry struct {
	newController func() *Controller
	idleTimeout   time.Duration

	mu       sync.Mutex
	sessions map[string]*Controller

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRegistry starts a registry whose janitor sweeps idle sessions every
// idleTimeout/2. Call Close to stop it.
func NewRegistry(newController func() *Controller, idleTimeout time.Duration) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	r := &Registry{
		newController: newController,
		idleTimeout:   idleTimeout,
		sessions:      make(map[string]*Controller),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go r.janitor(idleTimeout / 2)
	return r
}

func (r *Registry) janitor(interval time.Duration) {
	defer close(r.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				log.Debug().Int("expired", n).Msg("Expired idle sessions")
			}
		}
	}
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Controller, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.sessions[id]
	return c, ok
}

// Create starts a new session and returns its ID.
func (r *Registry) Create() (string, *Controller) {
	id := uuid.NewString()
	c := r.newController()

	r.mu.Lock()
	r.sessions[id] = c
	total := len(r.sessions)
	r.mu.Unlock()

	log.Info().Str("session_id", id).Int("active_sessions", total).Msg("Session created")
	return id, c
}

// GetOrCreate returns the session for id, creating a new one (with a new ID)
// when id is unknown or expired.
func (r *Registry) GetOrCreate(id string) (string, *Controller, bool) {
	if c, ok := r.Get(id); ok {
		return id, c, false
	}
	newID, c := r.Create()
	return newID, c, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep removes sessions idle since before now-idleTimeout. Sessions with an
// analysis in flight are kept. Returns the number removed.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.idleTimeout)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, c := range r.sessions {
		if c.Busy() || !c.LastActive().Before(cutoff) {
			continue
		}
		delete(r.sessions, id)
		removed++
	}
	return removed
}

// Close stops the janitor. It is safe to call more than once.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}
