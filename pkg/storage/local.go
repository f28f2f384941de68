package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Local 本地磁盘存储。内容类型在读取时按文件头识别
type Local struct {
	root string
}

// NewLocal 创建本地存储，目录不存在时自动创建
func NewLocal(dir string) (*Local, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return &Local{root: root}, nil
}

func (l *Local) path(key string) (string, string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return key, filepath.Join(l.root, filepath.FromSlash(key)), nil
}

// Put 先写临时文件再重命名
func (l *Local) Put(ctx context.Context, key string, r io.Reader, contentType string) (*ObjectInfo, error) {
	key, p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), p)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("storage: put %s: %w", key, err)
	}

	fi, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	return &ObjectInfo{
		Key:         key,
		Size:        n,
		ContentType: contentTypeOr(contentType),
		ModTime:     fi.ModTime(),
	}, nil
}

// Get 打开对象文件
func (l *Local) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	info, err := l.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	_, p, _ := l.path(key)
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, mapLocalErr(key, err)
	}
	return f, info, nil
}

// Stat 对象元数据
func (l *Local) Stat(_ context.Context, key string) (*ObjectInfo, error) {
	key, p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return nil, mapLocalErr(key, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}

	ct := DefaultContentType
	if mt, err := mimetype.DetectFile(p); err == nil {
		ct = mt.String()
	}
	return &ObjectInfo{Key: key, Size: fi.Size(), ContentType: ct, ModTime: fi.ModTime()}, nil
}

// Delete 删除对象
func (l *Local) Delete(_ context.Context, key string) error {
	key, p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Ping 检查根目录可访问
func (l *Local) Ping(context.Context) error {
	if _, err := os.Stat(l.root); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return nil
}

// Close 无需释放资源
func (l *Local) Close() error { return nil }

// Root 存储根目录
func (l *Local) Root() string { return l.root }

func mapLocalErr(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return fmt.Errorf("storage: %s: %w", key, err)
}
