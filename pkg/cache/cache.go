// Package cache provides the content-addressed record store used by the
// resolution engine, with file, Redis and null backends.
//
// Keys are canonical identity hashes (see the deps package); values are
// opaque serialized records. Entries never expire: staleness is handled at
// the engine level by the retry-for-unknown policy, which bypasses and
// overwrites entries wholesale instead of mutating them.
package cache

import (
	"context"
	"os"
	"path/filepath"
)

// Store is a key/value store for serialized records.
//
// Implementations must support concurrent readers and writers on different
// keys without coordination. Concurrent writes to the same key may race;
// last-write-wins is acceptable, partial values are not.
type Store interface {
	// Get retrieves the value for key. The second return value reports
	// whether the key was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores the value for key, replacing any previous value.
	Set(ctx context.Context, key string, data []byte) error

	// Delete removes the value for key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}

// DefaultDir returns the default on-disk cache directory,
// $XDG_CACHE_HOME/licenscan (or the platform equivalent).
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "licenscan"), nil
}
