package cachestore

import (
	"context"
)

// CacheStore is a TTL'd string cache keyed by namespace and key. A miss and
// an expired entry both read as the empty string, so callers must never
// store "" as a meaningful value.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}
