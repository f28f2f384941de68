package orm

import (
	"time"

	"go.uber.org/zap"
)

// DBType 数据库类型
type DBType string

const (
	MySQL      DBType = "mysql"
	PostgreSQL DBType = "postgres"
	SQLite     DBType = "sqlite"
	SQLServer  DBType = "sqlserver"
)

// Config 数据库配置
type Config struct {
	Type DBType
	DSN  string

	// Replicas 只读副本 DSN，非空时启用 dbresolver 读写分离
	Replicas []string
	// Policy 副本负载均衡：random/round_robin
	Policy string

	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	SkipDefaultTransaction bool
	PrepareStmt            bool

	// LogLevel silent/error/warn/info
	LogLevel      string
	SlowThreshold time.Duration
	Logger        *zap.Logger

	TablePrefix string

	// Tracing 注册 OpenTelemetry 插件；TraceSQL 额外记录完整 SQL
	Tracing  bool
	TraceSQL bool
}

// DefaultConfig 默认 sqlite 内存库
func DefaultConfig() *Config {
	return &Config{
		Type:            SQLite,
		DSN:             "file::memory:?cache=shared",
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		LogLevel:        "warn",
		SlowThreshold:   200 * time.Millisecond,
	}
}
