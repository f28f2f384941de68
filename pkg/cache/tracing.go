package cache

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "advisor/cache"

// tracedCache 为每次操作创建 client span
type tracedCache struct {
	Cache
	tracer trace.Tracer
	system string
}

// NewTracing 包装缓存，使用全局 TracerProvider
func NewTracing(c Cache, system string) Cache {
	return &tracedCache{Cache: c, tracer: otel.Tracer(tracerName), system: system}
}

func (t *tracedCache) do(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := t.tracer.Start(ctx, "cache."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(append(attrs,
		attribute.String("db.system", t.system),
		attribute.String("cache.operation", op),
	)...)

	err := fn(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCacheNotFound):
		span.SetAttributes(attribute.Bool("cache.hit", false))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func keyAttr(key string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String("cache.key", key)}
}

func (t *tracedCache) Get(ctx context.Context, key string, value any) error {
	return t.do(ctx, "get", keyAttr(key), func(ctx context.Context) error {
		return t.Cache.Get(ctx, key, value)
	})
}

func (t *tracedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	attrs := append(keyAttr(key), attribute.Int64("cache.ttl_ms", ttl.Milliseconds()))
	return t.do(ctx, "set", attrs, func(ctx context.Context) error {
		return t.Cache.Set(ctx, key, value, ttl)
	})
}

func (t *tracedCache) Delete(ctx context.Context, keys ...string) error {
	attrs := []attribute.KeyValue{attribute.StringSlice("cache.keys", keys)}
	return t.do(ctx, "delete", attrs, func(ctx context.Context) error {
		return t.Cache.Delete(ctx, keys...)
	})
}

func (t *tracedCache) Exists(ctx context.Context, key string) (found bool, err error) {
	err = t.do(ctx, "exists", keyAttr(key), func(ctx context.Context) error {
		found, err = t.Cache.Exists(ctx, key)
		return err
	})
	return found, err
}

func (t *tracedCache) TTL(ctx context.Context, key string) (ttl time.Duration, err error) {
	err = t.do(ctx, "ttl", keyAttr(key), func(ctx context.Context) error {
		ttl, err = t.Cache.TTL(ctx, key)
		return err
	})
	return ttl, err
}

func (t *tracedCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return t.do(ctx, "expire", keyAttr(key), func(ctx context.Context) error {
		return t.Cache.Expire(ctx, key, ttl)
	})
}

func (t *tracedCache) Incr(ctx context.Context, key string) (int64, error) {
	return t.IncrBy(ctx, key, 1)
}

func (t *tracedCache) IncrBy(ctx context.Context, key string, value int64) (n int64, err error) {
	err = t.do(ctx, "incrby", keyAttr(key), func(ctx context.Context) error {
		n, err = t.Cache.IncrBy(ctx, key, value)
		return err
	})
	return n, err
}
