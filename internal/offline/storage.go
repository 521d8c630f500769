// Package offline implements the versioned offline asset cache: an explicit
// install/activate/serve lifecycle over pluggable cache storage.
package offline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidCacheName is returned for names that cannot be used as a
// storage namespace.
var ErrInvalidCacheName = errors.New("invalid cache name")

// Entry is a cached response, keyed by request URL.
type Entry struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header,omitempty"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt"`
}

// Clone returns a deep copy so callers cannot mutate stored entries.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Header = e.Header.Clone()
	c.Body = append([]byte(nil), e.Body...)
	return &c
}

// Cache is one named cache generation.
type Cache interface {
	// Match returns the entry stored under the exact URL.
	Match(ctx context.Context, url string) (*Entry, bool, error)
	// Put stores or replaces an entry atomically per key.
	Put(ctx context.Context, e *Entry) error
	// Keys lists stored URLs.
	Keys(ctx context.Context) ([]string, error)
}

// Storage holds named caches.
type Storage interface {
	// Open returns the named cache, creating it if needed.
	Open(ctx context.Context, name string) (Cache, error)
	// Keys lists cache names.
	Keys(ctx context.Context) ([]string, error)
	// Delete removes a cache and everything in it. It reports whether the
	// cache existed.
	Delete(ctx context.Context, name string) (bool, error)
}

// CacheKey returns the key for a request URL: path plus query.
func CacheKey(u *url.URL) string {
	key := u.EscapedPath()
	if key == "" {
		key = "/"
	}
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key
}

// hashKey names an entry in backends that cannot use URLs as names.
func hashKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrInvalidCacheName
	}
	return nil
}
