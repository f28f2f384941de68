// Package broker 领域事件发布
package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// 消息头
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
)

// Event 领域事件
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key,omitempty"` // 分区键，通常是用户 id
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// NewEvent 创建事件
func NewEvent(eventType, key string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher 事件发布者
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// New 根据配置创建发布者，QueueSize > 0 时包装为异步发布
func New(cfg *Config, logger *zap.Logger) (Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		p   Publisher
		err error
	)
	switch cfg.Driver {
	case DriverKafka:
		p, err = NewKafka(cfg)
	case DriverRabbitMQ:
		p, err = NewRabbitMQ(cfg)
	case DriverNATS:
		p, err = NewNATS(cfg)
	default:
		return Noop{}, nil
	}
	if err != nil {
		return nil, err
	}

	if cfg.QueueSize > 0 {
		return NewAsync(p, cfg.QueueSize, cfg.PublishTimeout, logger), nil
	}
	return p, nil
}

// Destination 事件的 topic / routing key / subject
func Destination(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

func encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// headers 事件元数据及 trace 传播头
func headers(ctx context.Context, ev Event) map[string]string {
	h := map[string]string{
		HeaderEventID:   ev.ID,
		HeaderEventType: ev.Type,
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(h))
	return h
}

// Noop 丢弃所有事件
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
