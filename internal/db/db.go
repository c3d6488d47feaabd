package db

import (
	"context"
	"time"
)

// Store is the full database contract used by the pipeline repositories.
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	StreamPublisher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HSetIfExists sets hash fields only while the key still exists, in one
	// atomic step. Returns false without writing when the key is absent, so
	// a partial patch can never recreate a concurrently deleted hash.
	HSetIfExists(ctx context.Context, key string, fields map[string]string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	// HReplaceIfNewer atomically replaces the whole hash when version is
	// strictly greater than the stored versionField (or the key is absent).
	// Returns false when the write was discarded as stale.
	HReplaceIfNewer(ctx context.Context, key, versionField string, version int64, fields map[string]string) (bool, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
	// CompareAndSwap sets key to next only when its current value equals
	// expected. A nil expected means "create only if absent". Returns false
	// without writing when the comparison fails.
	CompareAndSwap(ctx context.Context, key string, expected, next []byte) (bool, error)
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides FT query operations.
type Searcher interface {
	SearchList(ctx context.Context, q *ListQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// StreamPublisher appends entries to a stream for external consumers.
type StreamPublisher interface {
	XAdd(ctx context.Context, stream string, fields map[string]string) (string, error)
}
