package cache

import "errors"

var (
	ErrCacheNotFound      = errors.New("cache: key not found")
	ErrCacheConnection    = errors.New("cache: connection failed")
	ErrCacheSerialization = errors.New("cache: serialization failed")
	ErrCacheInvalidConfig = errors.New("cache: invalid config")
	ErrCacheOperation     = errors.New("cache: operation failed")
)
