package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/secureflow/secureflow/scan"
)

// entry is the on-disk record: the result plus the write time the TTL
// check runs against. Storing the timestamp in the record rather than
// trusting file mtime keeps freshness verifiable after a copy or
// restore.
type entry struct {
	StoredAt time.Time    `json:"stored_at"`
	Result   *scan.Result `json:"result"`
}

// FileStore persists one JSON record per fingerprint under a cache
// directory. Writes go through a temp file and rename, so a concurrent
// reader sees either the old record or the new one, never a torn write.
type FileStore struct {
	dir string
	ttl time.Duration

	// now is the clock used for TTL checks, injectable for tests.
	now func() time.Time
}

// NewFileStore creates a file-backed store rooted at dir. A ttl of zero
// means DefaultTTL.
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FileStore{dir: dir, ttl: ttl, now: time.Now}, nil
}

func (s *FileStore) path(category scan.Category, target, tool string) string {
	return filepath.Join(s.dir, Fingerprint(category, target, tool)+".json")
}

// Get returns the cached result if present and fresh. Expired and
// corrupt records are deleted on the way out so the next read starts
// clean.
func (s *FileStore) Get(ctx context.Context, category scan.Category, target, tool string) (*scan.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.path(category, target, tool)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache: read failed: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Result == nil || e.StoredAt.IsZero() {
		s.remove(path)
		return nil, ErrCorrupt
	}

	if s.now().Sub(e.StoredAt) >= s.ttl {
		s.remove(path)
		return nil, ErrExpired
	}

	return e.Result, nil
}

// Put persists the result, overwriting any prior entry for the key.
func (s *FileStore) Put(ctx context.Context, category scan.Category, target, tool string, result *scan.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("cache: result is required")
	}

	data, err := json.Marshal(entry{StoredAt: s.now(), Result: result})
	if err != nil {
		return fmt.Errorf("cache: encode failed: %w", err)
	}

	path := s.path(category, target, tool)
	tmp, err := os.CreateTemp(s.dir, "put-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: write failed: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write failed: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write failed: %w", err)
	}
	return nil
}

// InvalidateAll removes every record regardless of age.
func (s *FileStore) InvalidateAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("cache: list failed: %w", err)
	}
	for _, path := range paths {
		s.remove(path)
	}
	return nil
}

// Stats reports record counts and the serialized footprint.
func (s *FileStore) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return Stats{}, fmt.Errorf("cache: list failed: %w", err)
	}

	stats := Stats{}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		stats.TotalEntries++
		stats.SizeBytes += info.Size()

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var e entry
		if json.Unmarshal(data, &e) == nil && s.now().Sub(e.StoredAt) < s.ttl {
			stats.ValidEntries++
		} else {
			stats.ExpiredEntries++
		}
	}
	return stats, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to delete cache entry", "path", path, "error", err)
	}
}
