package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryCache 基于 go-cache 的进程内缓存，值以序列化后的字节保存
type memoryCache struct {
	cache      *gocache.Cache
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
	mu         sync.Mutex // 串行化读改写操作
}

func newMemoryCache(cfg *Config) *memoryCache {
	return &memoryCache{
		cache:      gocache.New(cfg.DefaultTTL, cfg.Memory.CleanupInterval),
		serializer: cfg.Serializer,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}
}

func (m *memoryCache) key(k string) string {
	return m.keyPrefix + k
}

func (m *memoryCache) ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl == 0 {
		return m.defaultTTL
	}
	return ttl
}

func (m *memoryCache) Get(_ context.Context, key string, value any) error {
	data, found := m.cache.Get(m.key(key))
	if !found {
		return ErrCacheNotFound
	}
	if err := m.serializer.Unmarshal(data.([]byte), value); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}
	return nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := m.serializer.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}
	m.cache.Set(m.key(key), data, m.ttlOrDefault(ttl))
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.cache.Delete(m.key(k))
	}
	return nil
}

func (m *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, found := m.cache.Get(m.key(key))
	return found, nil
}

func (m *memoryCache) TTL(_ context.Context, key string) (time.Duration, error) {
	_, expiration, found := m.cache.GetWithExpiration(m.key(key))
	if !found {
		return 0, ErrCacheNotFound
	}
	if expiration.IsZero() {
		return -1, nil
	}
	return time.Until(expiration), nil
}

func (m *memoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, found := m.cache.Get(m.key(key))
	if !found {
		return ErrCacheNotFound
	}
	m.cache.Set(m.key(key), data, m.ttlOrDefault(ttl))
	return nil
}

func (m *memoryCache) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrBy(ctx, key, 1)
}

// IncrBy 已存在的键保留剩余过期时间，新键使用默认 TTL
func (m *memoryCache) IncrBy(_ context.Context, key string, value int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fullKey := m.key(key)
	ttl := m.defaultTTL
	var current int64

	if data, expiration, found := m.cache.GetWithExpiration(fullKey); found {
		if err := m.serializer.Unmarshal(data.([]byte), &current); err != nil {
			return 0, fmt.Errorf("%w: value is not an integer", ErrCacheOperation)
		}
		if expiration.IsZero() {
			ttl = gocache.NoExpiration
		} else if ttl = time.Until(expiration); ttl <= 0 {
			current, ttl = 0, m.defaultTTL
		}
	}

	current += value
	data, err := m.serializer.Marshal(current)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCacheSerialization, err)
	}
	m.cache.Set(fullKey, data, ttl)
	return current, nil
}

func (m *memoryCache) Ping(context.Context) error {
	return nil
}

func (m *memoryCache) Close() error {
	m.cache.Flush()
	return nil
}

func (m *memoryCache) String() string {
	return fmt.Sprintf("MemoryCache(prefix=%s, items=%d)", m.keyPrefix, m.cache.ItemCount())
}
