package broker

import (
	"fmt"
	"time"
)

// Driver 消息中间件类型
type Driver string

const (
	DriverNoop     Driver = "noop"
	DriverKafka    Driver = "kafka"
	DriverRabbitMQ Driver = "rabbitmq"
	DriverNATS     Driver = "nats"
)

// Config 发布者配置
type Config struct {
	Driver   Driver
	Brokers  []string // kafka
	URL      string   // rabbitmq / nats
	Prefix   string   // kafka topic 前缀、rabbitmq exchange、nats subject 前缀
	ClientID string

	// 异步队列，0 表示同步发布
	QueueSize      int
	PublishTimeout time.Duration
}

// DefaultConfig 默认不发布
func DefaultConfig() *Config {
	return &Config{
		Driver:         DriverNoop,
		Prefix:         "advisor",
		ClientID:       "advisor",
		QueueSize:      1024,
		PublishTimeout: 5 * time.Second,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverNoop:
		return nil
	case DriverKafka:
		if len(c.Brokers) == 0 {
			return fmt.Errorf("%w: kafka requires brokers", ErrInvalidConfig)
		}
	case DriverRabbitMQ, DriverNATS:
		if c.URL == "" {
			return fmt.Errorf("%w: %s requires url", ErrInvalidConfig, c.Driver)
		}
	default:
		return fmt.Errorf("%w: unsupported driver %q", ErrInvalidConfig, c.Driver)
	}
	if c.Prefix == "" {
		return fmt.Errorf("%w: prefix is required", ErrInvalidConfig)
	}
	return nil
}
