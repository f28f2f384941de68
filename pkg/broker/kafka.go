package broker

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

// Kafka 同步生产者，topic 为 prefix.event_type
type Kafka struct {
	producer sarama.SyncProducer
	prefix   string
}

// NewKafkaConfig 发布用的 sarama 配置
func NewKafkaConfig(clientID string) *sarama.Config {
	sc := sarama.NewConfig()
	if clientID != "" {
		sc.ClientID = clientID
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true
	return sc
}

// NewKafka 连接 kafka 集群
func NewKafka(cfg *Config) (*Kafka, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewKafkaConfig(cfg.ClientID))
	if err != nil {
		return nil, fmt.Errorf("%w: kafka: %w", ErrConnection, err)
	}
	return NewKafkaFromProducer(producer, cfg.Prefix), nil
}

// NewKafkaFromProducer 使用已有生产者
func NewKafkaFromProducer(producer sarama.SyncProducer, prefix string) *Kafka {
	return &Kafka{producer: producer, prefix: prefix}
}

// Publish 发送事件，以事件 key 分区
func (k *Kafka) Publish(ctx context.Context, ev Event) error {
	data, err := encode(ev)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     Destination(k.prefix, ev.Type),
		Value:     sarama.ByteEncoder(data),
		Timestamp: ev.OccurredAt,
	}
	if ev.Key != "" {
		msg.Key = sarama.StringEncoder(ev.Key)
	}
	for key, value := range headers(ctx, ev) {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
	}

	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("%w: kafka %s: %w", ErrPublish, msg.Topic, err)
	}
	return nil
}

// Close 关闭生产者
func (k *Kafka) Close() error {
	return k.producer.Close()
}
