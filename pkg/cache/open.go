package cache

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Backends lists the names accepted by Open.
var Backends = []string{BackendNone, BackendFile, BackendMemory, BackendRedis, BackendMongo}

// OpenOptions selects and configures a backend.
type OpenOptions struct {
	Backend       string
	Dir           string // file
	MemoryEntries int    // memory
	RedisURL      string // redis
	MongoURI      string // mongo
	Prefix        string // redis key prefix
}

// Open returns the configured backend. An empty backend name means none.
func Open(ctx context.Context, opts OpenOptions) (Cache, error) {
	switch opts.Backend {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendFile:
		if opts.Dir == "" {
			return nil, fmt.Errorf("file cache: directory is required")
		}
		return orNil(NewFileCache(opts.Dir))
	case BackendMemory:
		return NewMemoryCache(opts.MemoryEntries), nil
	case BackendRedis:
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("redis cache: url is required")
		}
		return orNil(NewRedisCache(ctx, RedisOptions{URL: opts.RedisURL, Prefix: opts.Prefix}))
	case BackendMongo:
		return orNil(NewMongoCache(ctx, MongoOptions{URI: opts.MongoURI}))
	default:
		return nil, fmt.Errorf("unknown cache backend %q (must be one of: %v)", opts.Backend, Backends)
	}
}

// orNil keeps a failed constructor from yielding a non-nil interface.
func orNil[C Cache](c C, err error) (Cache, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
