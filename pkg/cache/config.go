package cache

import (
	"fmt"
	"time"
)

// DriverType 驱动类型
type DriverType string

const (
	DriverRedis  DriverType = "redis"
	DriverMemory DriverType = "memory"
)

// RedisMode Redis 部署模式
type RedisMode string

const (
	RedisStandalone RedisMode = "standalone"
	RedisCluster    RedisMode = "cluster"
	RedisSentinel   RedisMode = "sentinel"
)

// Config 缓存配置
type Config struct {
	Driver     DriverType
	Redis      *RedisConfig
	Memory     *MemoryConfig
	Serializer Serializer
	KeyPrefix  string
	DefaultTTL time.Duration // Set 传入 0 时使用
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr         string
	Addrs        []string // 集群/哨兵节点
	Mode         RedisMode
	Username     string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MasterName   string // 哨兵模式
}

// MemoryConfig 内存缓存配置
type MemoryConfig struct {
	CleanupInterval time.Duration
}

// DefaultConfig 内存驱动，默认 TTL 10 分钟
func DefaultConfig() *Config {
	return &Config{
		Driver:     DriverMemory,
		Serializer: JSONSerializer{},
		DefaultTTL: 10 * time.Minute,
		Memory:     &MemoryConfig{CleanupInterval: 5 * time.Minute},
	}
}

// DefaultRedisConfig 单机 Redis 默认配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Mode:         RedisStandalone,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Option 配置选项
type Option func(*Config)

// WithRedis 使用 Redis 驱动
func WithRedis(cfg *RedisConfig) Option {
	return func(c *Config) {
		c.Driver = DriverRedis
		c.Redis = cfg
	}
}

// WithMemory 使用内存驱动
func WithMemory(cfg *MemoryConfig) Option {
	return func(c *Config) {
		c.Driver = DriverMemory
		c.Memory = cfg
	}
}

// WithSerializer 设置序列化器
func WithSerializer(s Serializer) Option {
	return func(c *Config) { c.Serializer = s }
}

// WithKeyPrefix 设置键前缀
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) { c.KeyPrefix = prefix }
}

// WithDefaultTTL 设置默认 TTL
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Config) { c.DefaultTTL = ttl }
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Driver {
	case DriverMemory:
		if c.Memory == nil {
			c.Memory = &MemoryConfig{CleanupInterval: 5 * time.Minute}
		}
		return nil
	case DriverRedis:
	default:
		return fmt.Errorf("%w: invalid driver %q", ErrCacheInvalidConfig, c.Driver)
	}

	if c.Redis == nil {
		return fmt.Errorf("%w: redis config is required", ErrCacheInvalidConfig)
	}
	switch c.Redis.Mode {
	case RedisStandalone, "":
		if c.Redis.Addr == "" {
			return fmt.Errorf("%w: redis addr is required", ErrCacheInvalidConfig)
		}
	case RedisCluster:
		if len(c.Redis.Addrs) == 0 {
			return fmt.Errorf("%w: redis cluster requires addrs", ErrCacheInvalidConfig)
		}
	case RedisSentinel:
		if len(c.Redis.Addrs) == 0 || c.Redis.MasterName == "" {
			return fmt.Errorf("%w: redis sentinel requires addrs and master name", ErrCacheInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: invalid redis mode %q", ErrCacheInvalidConfig, c.Redis.Mode)
	}
	return nil
}
