package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// Group 旁路缓存加载器。同一 key 的并发未命中只回源一次
type Group struct {
	cache Cache
	sf    singleflight.Group
}

// NewGroup 创建加载器
func NewGroup(c Cache) *Group {
	return &Group{cache: c}
}

// Cache 返回底层缓存
func (g *Group) Cache() Cache {
	return g.cache
}

// Invalidate 删除缓存并丢弃进行中的加载结果
func (g *Group) Invalidate(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		g.sf.Forget(k)
	}
	return g.cache.Delete(ctx, keys...)
}

// Remember 命中直接返回，否则调用 fn 回源并写回缓存。
// 缓存读写失败只降级为回源，不影响结果；fn 的错误原样返回且不缓存
func Remember[T any](ctx context.Context, g *Group, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var cached T
	if err := g.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	v, err, _ := g.sf.Do(key, func() (any, error) {
		var again T
		if err := g.cache.Get(ctx, key, &again); err == nil {
			return again, nil
		}
		loaded, err := fn(ctx)
		if err != nil {
			return loaded, err
		}
		_ = g.cache.Set(ctx, key, loaded, ttl)
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// IsNotFound 是否为缓存未命中
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCacheNotFound)
}
