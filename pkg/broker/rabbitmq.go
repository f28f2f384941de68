package broker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ 发布到 topic 类型 exchange，routing key 为事件类型
type RabbitMQ struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

// NewRabbitMQ 连接并声明 exchange
func NewRabbitMQ(cfg *Config) (*RabbitMQ, error) {
	conn, err := amqp.DialConfig(cfg.URL, amqp.Config{
		Properties: amqp.Table{"connection_name": cfg.ClientID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: rabbitmq: %w", ErrConnection, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: rabbitmq channel: %w", ErrConnection, err)
	}
	if err := ch.ExchangeDeclare(cfg.Prefix, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: declare exchange %s: %w", ErrConnection, cfg.Prefix, err)
	}
	return &RabbitMQ{conn: conn, ch: ch, exchange: cfg.Prefix}, nil
}

// Publish 持久化投递
func (r *RabbitMQ) Publish(ctx context.Context, ev Event) error {
	data, err := encode(ev)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	table := amqp.Table{}
	for k, v := range headers(ctx, ev) {
		table[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	err = r.ch.PublishWithContext(ctx, r.exchange, ev.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		Headers:      table,
		Body:         data,
	})
	if err != nil {
		return fmt.Errorf("%w: rabbitmq %s: %w", ErrPublish, ev.Type, err)
	}
	return nil
}

// Close 关闭通道与连接
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.ch.Close()
	return r.conn.Close()
}
