package offline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

const entrySuffix = ".json.zst"

// DiskStorage keeps one directory per cache under Root. Each entry is a
// zstd-compressed JSON file named by the SHA-256 of its URL.
type DiskStorage struct {
	Root string
}

// NewDiskStorage creates root if needed.
func NewDiskStorage(root string) (*DiskStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return &DiskStorage{Root: root}, nil
}

func (s *DiskStorage) Open(_ context.Context, name string) (Cache, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.Root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &diskCache{dir: dir}, nil
}

func (s *DiskStorage) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list cache root: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *DiskStorage) Delete(_ context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	dir := filepath.Join(s.Root, name)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return true, fmt.Errorf("remove cache dir: %w", err)
	}
	return true, nil
}

type diskCache struct {
	dir string
}

func (c *diskCache) path(url string) string {
	return filepath.Join(c.dir, hashKey(url)+entrySuffix)
}

func (c *diskCache) Match(_ context.Context, url string) (*Entry, bool, error) {
	data, err := os.ReadFile(c.path(url))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	e, err := decodeEntry(data)
	if err != nil {
		return nil, false, err
	}
	if e.URL != url {
		// hash collision or foreign file
		return nil, false, nil
	}
	return e, true, nil
}

// Put writes to a temp file and renames it into place so readers see either
// the old entry or the new one.
func (c *diskCache) Put(_ context.Context, e *Entry) error {
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, ".put-*")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp entry: %w", err)
	}
	if err := os.Rename(tmpPath, c.path(e.URL)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("commit entry: %w", err)
	}
	return nil
}

func (c *diskCache) Keys(_ context.Context) ([]string, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list cache dir: %w", err)
	}
	var keys []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), entrySuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("read cache entry: %w", err)
		}
		e, err := decodeEntry(data)
		if err != nil {
			log.Warn().Err(err).Str("file", f.Name()).Msg("Skipping unreadable cache entry")
			continue
		}
		keys = append(keys, e.URL)
	}
	sort.Strings(keys)
	return keys, nil
}
