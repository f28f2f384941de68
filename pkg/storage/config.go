package storage

import (
	"fmt"
	"time"
)

// Driver 存储驱动
type Driver string

const (
	DriverLocal Driver = "local"
	DriverNATS  Driver = "nats"
)

// Config 对象存储配置
type Config struct {
	Driver Driver

	// local
	Dir string

	// nats
	URL            string
	Bucket         string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// DefaultConfig 默认使用本地磁盘
func DefaultConfig() *Config {
	return &Config{
		Driver:         DriverLocal,
		Dir:            "data/documents",
		URL:            "nats://localhost:4222",
		Bucket:         "advisor-documents",
		MaxReconnects:  10,
		ReconnectWait:  time.Second,
		ConnectTimeout: 5 * time.Second,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverLocal:
		if c.Dir == "" {
			return fmt.Errorf("%w: dir is required for local driver", ErrInvalidConfig)
		}
	case DriverNATS:
		if c.URL == "" || c.Bucket == "" {
			return fmt.Errorf("%w: url and bucket are required for nats driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported driver %q", ErrInvalidConfig, c.Driver)
	}
	return nil
}

// Option 配置选项
type Option func(*Config)

// WithLocal 本地磁盘驱动
func WithLocal(dir string) Option {
	return func(c *Config) {
		c.Driver = DriverLocal
		c.Dir = dir
	}
}

// WithNATS JetStream 对象存储驱动
func WithNATS(url, bucket string) Option {
	return func(c *Config) {
		c.Driver = DriverNATS
		c.URL = url
		c.Bucket = bucket
	}
}
