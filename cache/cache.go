// Package cache memoizes scan results by fingerprint so an unchanged
// target is not re-scanned within the validity window.
//
// A fingerprint is a deterministic hash over (category, target, tool);
// the same triple always addresses the same entry. Entries are
// immutable once written until superseded by a newer scan of the same
// key, and a read never sees a partially written entry. Anything
// ambiguous on the read path (expired, unreadable, corrupt) resolves
// to a miss, never to stale data served as fresh.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/secureflow/secureflow/scan"
)

// Common errors returned by cache operations.
var (
	// ErrNotFound is returned when no entry exists for the fingerprint.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrExpired is returned when an entry exists but its age exceeds
	// the TTL. The entry is deleted as a side effect.
	ErrExpired = errors.New("cache: entry expired")

	// ErrCorrupt is returned when an entry cannot be decoded. The
	// entry is deleted as a side effect.
	ErrCorrupt = errors.New("cache: entry corrupt")
)

// DefaultTTL is the validity window applied when a store is built
// without an explicit TTL.
const DefaultTTL = time.Hour

// Store persists scan results keyed by fingerprint.
//
// Put overwrites unconditionally. Get returns ErrNotFound, ErrExpired
// or ErrCorrupt for anything other than a fresh, decodable entry;
// callers treat all three as a miss.
type Store interface {
	// Get returns the cached result for (category, target, tool) if it
	// exists and is still fresh.
	Get(ctx context.Context, category scan.Category, target, tool string) (*scan.Result, error)

	// Put persists the result, replacing any prior entry for the key.
	Put(ctx context.Context, category scan.Category, target, tool string, result *scan.Result) error

	// InvalidateAll removes every entry regardless of age. Used for
	// forced re-scans.
	InvalidateAll(ctx context.Context) error

	// Stats reports entry counts and storage footprint.
	Stats(ctx context.Context) (Stats, error)

	// Close releases store resources.
	Close() error
}

// Stats describes the current contents of a store.
type Stats struct {
	// TotalEntries is the number of records present, fresh or not.
	TotalEntries int `json:"total_entries"`

	// ValidEntries is the number of records within the TTL window.
	ValidEntries int `json:"valid_entries"`

	// ExpiredEntries is the number of records past the TTL window.
	ExpiredEntries int `json:"expired_entries"`

	// SizeBytes is the serialized footprint of all records, where the
	// backing store can report it.
	SizeBytes int64 `json:"size_bytes"`
}

// IsMiss reports whether an error from Get means "execute the backend",
// as opposed to a store failure worth logging.
func IsMiss(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) || errors.Is(err, ErrCorrupt)
}

// Fingerprint derives the deterministic cache key for a scan triple.
func Fingerprint(category scan.Category, target, tool string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", category, target, tool)))
	return hex.EncodeToString(sum[:])
}
