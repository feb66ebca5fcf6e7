package cachestore

import (
	"context"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/spaolacci/murmur3"
)

// MemcachedCacheStore backs the cache with a memcached cluster, for
// deployments that already run one instead of redis.
type MemcachedCacheStore struct {
	Client *memcache.Client
	Expiry int32
}

var _ CacheStore = (*MemcachedCacheStore)(nil)

func NewMemcachedCacheStore(servers []string, ttl time.Duration) (*MemcachedCacheStore, error) {
	expiry := int32(0)
	if ttl.Seconds() > (30 * 24 * 60 * 60) {
		// clamp expiry at 30 days minus a minute for memcached
		expiry = (30 * 24 * 60 * 60) - 60
	} else {
		expiry = int32(ttl.Seconds())
	}
	client := memcache.New(servers...)
	if err := client.Ping(); err != nil {
		return nil, err
	}
	return &MemcachedCacheStore{
		Client: client,
		Expiry: expiry,
	}, nil
}

// memcached keys are capped at 250 bytes; longer keys (URLs mostly) are
// replaced with a hash.
func memcachedCacheKey(name, key string) string {
	k := "cache/" + name + "/" + key
	if len(k) > 250 {
		return fmt.Sprintf("cache/%s/%016x", name, murmur3.Sum64([]byte(key)))
	}
	return k
}

func (s *MemcachedCacheStore) Get(ctx context.Context, name, key string) (string, error) {
	it, err := s.Client.Get(memcachedCacheKey(name, key))
	if err == memcache.ErrCacheMiss {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(it.Value), nil
}

func (s *MemcachedCacheStore) Set(ctx context.Context, name, key string, val string) error {
	return s.Client.Set(&memcache.Item{
		Key:        memcachedCacheKey(name, key),
		Value:      []byte(val),
		Expiration: s.Expiry,
	})
}

func (s *MemcachedCacheStore) Purge(ctx context.Context, name, key string) error {
	err := s.Client.Delete(memcachedCacheKey(name, key))
	if err == memcache.ErrCacheMiss {
		return nil
	}
	return err
}
