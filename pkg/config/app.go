package config

import (
	"fmt"
	"slices"
	"time"
)

// EnvPrefix 环境变量前缀，ADVISOR_SERVER_PORT 覆盖 server.port
const EnvPrefix = "ADVISOR"

// AppConfig 服务完整配置
type AppConfig struct {
	App       AppSection       `mapstructure:"app"`
	Server    ServerSection    `mapstructure:"server"`
	Log       LogSection       `mapstructure:"log"`
	Database  DatabaseSection  `mapstructure:"database"`
	Cache     CacheSection     `mapstructure:"cache"`
	Auth      AuthSection      `mapstructure:"auth"`
	Storage   StorageSection   `mapstructure:"storage"`
	Broker    BrokerSection    `mapstructure:"broker"`
	Tracing   TracingSection   `mapstructure:"tracing"`
	Chat      ChatSection      `mapstructure:"chat"`
	CORS      CORSSection      `mapstructure:"cors"`
	RateLimit RateLimitSection `mapstructure:"rate_limit"`
}

type AppSection struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development/staging/production
	Debug       bool   `mapstructure:"debug"`
}

type ServerSection struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"` // 仅作用于 REST 路由
	PublicURL       string        `mapstructure:"public_url"`      // 对外地址，用于生成 websocket url
}

// Addr 监听地址
func (s ServerSection) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogSection struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json/console
	Output     string `mapstructure:"output"` // console/file/both
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type DatabaseSection struct {
	Driver          string        `mapstructure:"driver"` // sqlite/postgres/mysql/sqlserver
	DSN             string        `mapstructure:"dsn"`
	Replicas        []string      `mapstructure:"replicas"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	TablePrefix     string        `mapstructure:"table_prefix"`
}

type CacheSection struct {
	Driver     string        `mapstructure:"driver"` // memory/redis
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	ProfileTTL time.Duration `mapstructure:"profile_ttl"`
}

type AuthSection struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	AccessTokenExpire  time.Duration `mapstructure:"access_token_expire"`
	GoogleClientID     string        `mapstructure:"google_client_id"`
	GoogleTokenInfoURL string        `mapstructure:"google_tokeninfo_url"`
}

type StorageSection struct {
	Driver          string `mapstructure:"driver"` // local/nats
	LocalDir        string `mapstructure:"local_dir"`
	NATSURL         string `mapstructure:"nats_url"`
	Bucket          string `mapstructure:"bucket"`
	MaxFileSize     int64  `mapstructure:"max_file_size"`
	MaxCertificates int    `mapstructure:"max_certificates"`
}

type BrokerSection struct {
	Driver   string   `mapstructure:"driver"` // noop/kafka/rabbitmq/nats
	Brokers  []string `mapstructure:"brokers"`
	URL      string   `mapstructure:"url"`
	Topic    string   `mapstructure:"topic"` // kafka topic 前缀、rabbitmq exchange、nats subject 前缀
	ClientID string   `mapstructure:"client_id"`
}

type TracingSection struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"` // stdout/otlp-http/otlp-grpc/noop
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

type ChatSection struct {
	MaxConnections     int           `mapstructure:"max_connections"`
	MaxMessageSize     int64         `mapstructure:"max_message_size"`
	SendQueueSize      int           `mapstructure:"send_queue_size"`
	MaxInvalidMessages int           `mapstructure:"max_invalid_messages"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	TypingTimeout      time.Duration `mapstructure:"typing_timeout"`
	SessionTimeout     time.Duration `mapstructure:"session_timeout"`
	MaxContentLength   int           `mapstructure:"max_content_length"`
	DefaultRoom        string        `mapstructure:"default_room"`
	PresenceReconcile  string        `mapstructure:"presence_reconcile"` // cron 表达式，空字符串关闭
}

type CORSSection struct {
	AllowOrigins     []string      `mapstructure:"allow_origins"`
	AllowMethods     []string      `mapstructure:"allow_methods"`
	AllowHeaders     []string      `mapstructure:"allow_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type RateLimitSection struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Defaults 所有键的默认值。每个键都需要注册，环境变量才能参与 Unmarshal
func Defaults() map[string]any {
	return map[string]any{
		"app.name":        "student-advisor-portal",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		"server.host":             "0.0.0.0",
		"server.port":             8000,
		"server.read_timeout":     "15s",
		"server.write_timeout":    "15s",
		"server.idle_timeout":     "60s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "30s",
		"server.public_url":       "",

		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "console",
		"log.file":        "logs/advisor.log",
		"log.max_size":    100,
		"log.max_age":     30,
		"log.max_backups": 10,
		"log.compress":    false,

		"database.driver":            "sqlite",
		"database.dsn":               "file:advisor.db?_pragma=foreign_keys(1)",
		"database.replicas":          []string{},
		"database.max_idle_conns":    10,
		"database.max_open_conns":    50,
		"database.conn_max_lifetime": "1h",
		"database.slow_threshold":    "200ms",
		"database.auto_migrate":      true,
		"database.table_prefix":      "",

		"cache.driver":      "memory",
		"cache.addr":        "localhost:6379",
		"cache.password":    "",
		"cache.db":          0,
		"cache.key_prefix":  "advisor:",
		"cache.default_ttl": "10m",
		"cache.profile_ttl": "5m",

		"auth.jwt_secret":           "",
		"auth.access_token_expire":  "30m",
		"auth.google_client_id":     "",
		"auth.google_tokeninfo_url": "https://oauth2.googleapis.com/tokeninfo",

		"storage.driver":           "local",
		"storage.local_dir":        "data/documents",
		"storage.nats_url":         "nats://localhost:4222",
		"storage.bucket":           "advisor-documents",
		"storage.max_file_size":    10 << 20,
		"storage.max_certificates": 10,

		"broker.driver":    "noop",
		"broker.brokers":   []string{"localhost:9092"},
		"broker.url":       "",
		"broker.topic":     "advisor",
		"broker.client_id": "advisor",

		"tracing.enabled":      false,
		"tracing.exporter":     "stdout",
		"tracing.endpoint":     "localhost:4318",
		"tracing.insecure":     true,
		"tracing.sample_rate":  1.0,
		"tracing.service_name": "advisor",

		"chat.max_connections":      10000,
		"chat.max_message_size":     64 << 10,
		"chat.send_queue_size":      256,
		"chat.max_invalid_messages": 10,
		"chat.sweep_interval":       "30s",
		"chat.typing_timeout":       "5s",
		"chat.session_timeout":      "30m",
		"chat.max_content_length":   2000,
		"chat.default_room":         "general",
		"chat.presence_reconcile":   "@every 5m",

		"cors.allow_origins":     []string{"http://localhost:3000", "http://localhost:5173"},
		"cors.allow_methods":     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		"cors.allow_headers":     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		"cors.allow_credentials": true,
		"cors.max_age":           "12h",

		"rate_limit.enabled":  true,
		"rate_limit.requests": 120,
		"rate_limit.window":   "1m",
	}
}

var (
	databaseDrivers = []string{"sqlite", "postgres", "mysql", "sqlserver"}
	cacheDrivers    = []string{"memory", "redis"}
	storageDrivers  = []string{"local", "nats"}
	brokerDrivers   = []string{"noop", "kafka", "rabbitmq", "nats"}
	exporters       = []string{"stdout", "otlp-http", "otlp-grpc", "noop"}
	logOutputs      = []string{"console", "file", "both"}
)

// Validate 校验配置
func (c *AppConfig) Validate() error {
	check := func(ok bool, format string, args ...any) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	checks := []error{
		check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d out of range", c.Server.Port),
		check(slices.Contains(logOutputs, c.Log.Output), "log.output %q", c.Log.Output),
		check(slices.Contains(databaseDrivers, c.Database.Driver), "database.driver %q", c.Database.Driver),
		check(c.Database.DSN != "", "database.dsn is required"),
		check(slices.Contains(cacheDrivers, c.Cache.Driver), "cache.driver %q", c.Cache.Driver),
		check(c.Auth.AccessTokenExpire > 0, "auth.access_token_expire must be positive"),
		check(slices.Contains(storageDrivers, c.Storage.Driver), "storage.driver %q", c.Storage.Driver),
		check(c.Storage.MaxFileSize > 0, "storage.max_file_size must be positive"),
		check(slices.Contains(brokerDrivers, c.Broker.Driver), "broker.driver %q", c.Broker.Driver),
		check(!c.Tracing.Enabled || slices.Contains(exporters, c.Tracing.Exporter), "tracing.exporter %q", c.Tracing.Exporter),
		check(c.Chat.SessionTimeout > c.Chat.TypingTimeout, "chat.session_timeout must exceed chat.typing_timeout"),
		check(c.Chat.DefaultRoom != "", "chat.default_room is required"),
		check(!c.RateLimit.Enabled || (c.RateLimit.Requests > 0 && c.RateLimit.Window > 0), "rate_limit requires requests and window"),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	if c.App.Environment == "production" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth.jwt_secret is required in production", ErrInvalidConfig)
	}
	return nil
}

// IsProduction 是否生产环境
func (c *AppConfig) IsProduction() bool {
	return c.App.Environment == "production"
}

// Loader 读取并校验 AppConfig，可监控配置文件变更
type Loader struct {
	*Config
}

// NewLoader 创建带默认值和 ADVISOR_ 环境变量覆盖的 Loader，path 为空时按名称在搜索路径中查找
func NewLoader(path string, opts ...Option) *Loader {
	base := []Option{
		WithDefaults(Defaults()),
		WithEnvPrefix(EnvPrefix),
		WithOptionalFile(true),
	}
	if path != "" {
		base = append(base, WithConfigFile(path))
	} else {
		base = append(base, WithConfigName("config"), WithConfigType("yaml"), WithConfigPaths(".", "./configs", "/etc/advisor"))
	}
	return &Loader{Config: New(append(base, opts...)...)}
}

// Load 读取配置并返回校验后的 AppConfig
func (l *Loader) Load() (*AppConfig, error) {
	if err := l.Config.Load(); err != nil {
		return nil, err
	}
	return l.App()
}

// App 按当前内容反序列化 AppConfig
func (l *Loader) App() (*AppConfig, error) {
	var app AppConfig
	if err := l.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigReadFailed, err)
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return &app, nil
}

// Watch 配置文件变更后重新解析，校验通过才交给 fn
func (l *Loader) Watch(fn func(*AppConfig)) error {
	l.OnChange(func() {
		app, err := l.App()
		if err != nil {
			l.reportError(err)
			return
		}
		fn(app)
	})
	return l.StartWatch()
}
