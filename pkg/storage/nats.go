package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATS JetStream 对象存储
type NATS struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	store  jetstream.ObjectStore
	bucket string
}

// NewNATS 连接 NATS 并打开或创建 bucket
func NewNATS(cfg *Config) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("advisor-storage"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	store, err := NewNATSFromJetStream(ctx, js, cfg.Bucket)
	if err != nil {
		conn.Close()
		return nil, err
	}
	store.conn = conn
	return store, nil
}

// NewNATSFromJetStream 使用已有的 JetStream 上下文，连接由调用方管理
func NewNATSFromJetStream(ctx context.Context, js jetstream.JetStream, bucket string) (*NATS, error) {
	store, err := js.ObjectStore(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "advisor document uploads",
			Storage:     jetstream.FileStorage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bucket %s: %w", ErrConnection, bucket, err)
	}
	return &NATS{js: js, store: store, bucket: bucket}, nil
}

// Put 写入对象
func (s *NATS) Put(ctx context.Context, key string, r io.Reader, contentType string) (*ObjectInfo, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	meta := jetstream.ObjectMeta{
		Name:    key,
		Headers: nats.Header{"Content-Type": []string{contentTypeOr(contentType)}},
	}
	info, err := s.store.Put(ctx, meta, r)
	if err != nil {
		return nil, fmt.Errorf("storage: put %s: %w", key, err)
	}
	return toObjectInfo(info), nil
}

// Get 读取对象
func (s *NATS) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, nil, mapNATSErr(key, err)
	}
	info, err := result.Info()
	if err != nil {
		_ = result.Close()
		return nil, nil, mapNATSErr(key, err)
	}
	return result, toObjectInfo(info), nil
}

// Stat 对象元数据
func (s *NATS) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	info, err := s.store.GetInfo(ctx, key)
	if err != nil {
		return nil, mapNATSErr(key, err)
	}
	return toObjectInfo(info), nil
}

// Delete 删除对象
func (s *NATS) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Ping 检查连接与 bucket 状态
func (s *NATS) Ping(ctx context.Context) error {
	if s.conn != nil && !s.conn.IsConnected() {
		return fmt.Errorf("%w: nats disconnected", ErrConnection)
	}
	if _, err := s.store.Status(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return nil
}

// Close 关闭自有连接
func (s *NATS) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func toObjectInfo(info *jetstream.ObjectInfo) *ObjectInfo {
	ct := DefaultContentType
	if info.Headers != nil {
		if v := info.Headers.Get("Content-Type"); v != "" {
			ct = v
		}
	}
	return &ObjectInfo{
		Key:         info.Name,
		Size:        int64(info.Size),
		ContentType: ct,
		ModTime:     info.ModTime,
	}
}

func mapNATSErr(key string, err error) error {
	if errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return fmt.Errorf("storage: %s: %w", key, err)
}
