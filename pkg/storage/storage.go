// Package storage 文档对象存储，键使用 "/" 分隔
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// DefaultContentType 未知类型
const DefaultContentType = "application/octet-stream"

// ObjectInfo 对象元数据
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Storage 对象存储接口
type Storage interface {
	// Put 写入对象，已存在则覆盖
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*ObjectInfo, error)
	// Get 读取对象，调用方负责关闭
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Stat(ctx context.Context, key string) (*ObjectInfo, error)
	// Delete 删除对象，不存在时不报错
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// New 根据配置创建存储
func New(cfg *Config) (Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverNATS:
		return NewNATS(cfg)
	default:
		return NewLocal(cfg.Dir)
	}
}

// NewWithOptions 使用选项创建存储
func NewWithOptions(opts ...Option) (Storage, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return New(cfg)
}

// CleanKey 规范化对象键，拒绝越出根目录的路径
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func contentTypeOr(ct string) string {
	if ct == "" {
		return DefaultContentType
	}
	return ct
}
