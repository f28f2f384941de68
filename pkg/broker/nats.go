package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS 核心发布，subject 为 prefix.event_type
type NATS struct {
	conn   *nats.Conn
	prefix string
	owned  bool
}

// NewNATS 连接 NATS
func NewNATS(cfg *Config) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.ClientID),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: nats: %w", ErrConnection, err)
	}
	return &NATS{conn: conn, prefix: cfg.Prefix, owned: true}, nil
}

// NewNATSFromConn 使用已有连接，Close 不会关闭它
func NewNATSFromConn(conn *nats.Conn, prefix string) *NATS {
	return &NATS{conn: conn, prefix: prefix}
}

// Publish 发布事件，Nats-Msg-Id 用于 JetStream 去重
func (n *NATS) Publish(ctx context.Context, ev Event) error {
	data, err := encode(ev)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	msg := nats.NewMsg(Destination(n.prefix, ev.Type))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, ev.ID)
	for k, v := range headers(ctx, ev) {
		msg.Header.Set(k, v)
	}

	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("%w: nats %s: %w", ErrPublish, msg.Subject, err)
	}
	return nil
}

// Close 刷新并关闭自有连接
func (n *NATS) Close() error {
	if !n.owned {
		return nil
	}
	return n.conn.Drain()
}
