// Package cache stores rendered documents and extraction results.
//
// All backends implement [Cache]. Keys are built by a [Keyer] from a content
// hash plus every option that changes the output, so a hit is always safe to
// serve. Backends:
//
//   - [NullCache]: caching disabled
//   - [FileCache]: one JSON file per entry on local disk (CLI default)
//   - [MemoryCache]: bounded in-process LRU (HTTP server default)
//   - [RedisCache]: shared cache for multi-instance deployments
//   - [MongoCache]: shared cache when MongoDB is already available
//
// Cache failures are never fatal to a render; callers treat errors as misses.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value and true on a hit, or false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Entry lifetimes.
const (
	// TTLDocument applies to rendered artifacts. Rendering is deterministic,
	// so the lifetime only bounds storage.
	TTLDocument = 7 * 24 * time.Hour

	// TTLExtract applies to text extraction results, which may depend on a
	// remote model.
	TTLExtract = 24 * time.Hour
)
