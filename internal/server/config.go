package server

import (
	"time"

	"github.com/tokmz/advisor/pkg/broker"
	"github.com/tokmz/advisor/pkg/cache"
	"github.com/tokmz/advisor/pkg/config"
	"github.com/tokmz/advisor/pkg/logger"
	"github.com/tokmz/advisor/pkg/orm"
	"github.com/tokmz/advisor/pkg/request"
	"github.com/tokmz/advisor/pkg/storage"
	"github.com/tokmz/advisor/pkg/tracing"
)

// LoggerConfig 由配置文件的 log 段生成日志配置
func LoggerConfig(cfg *config.AppConfig) (*logger.Config, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	format, err := logger.ParseFormat(cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	lc := &logger.Config{Level: level, Format: format}
	switch cfg.Log.Output {
	case "file":
		lc.Rotate = rotateConfig(cfg.Log)
	case "both":
		lc.Console = true
		lc.Rotate = rotateConfig(cfg.Log)
	default:
		lc.Console = true
	}
	return lc, nil
}

func rotateConfig(l config.LogSection) *logger.RotateConfig {
	return &logger.RotateConfig{
		Filename:   l.File,
		MaxSize:    l.MaxSize,
		MaxAge:     l.MaxAge,
		MaxBackups: l.MaxBackups,
		LocalTime:  true,
		Compress:   l.Compress,
	}
}

func tracingConfig(cfg *config.AppConfig) *tracing.Config {
	tc := tracing.DefaultConfig()
	tc.Enabled = cfg.Tracing.Enabled
	tc.ServiceName = cfg.Tracing.ServiceName
	tc.ServiceVersion = cfg.App.Version
	tc.Environment = cfg.App.Environment
	tc.Exporter = cfg.Tracing.Exporter
	tc.Endpoint = cfg.Tracing.Endpoint
	tc.Insecure = cfg.Tracing.Insecure
	tc.SamplingRate = cfg.Tracing.SampleRate
	return tc
}

func ormConfig(cfg *config.AppConfig, log logger.Logger) *orm.Config {
	oc := orm.DefaultConfig()
	oc.Type = orm.DBType(cfg.Database.Driver)
	oc.DSN = cfg.Database.DSN
	oc.Replicas = cfg.Database.Replicas
	oc.MaxIdleConns = cfg.Database.MaxIdleConns
	oc.MaxOpenConns = cfg.Database.MaxOpenConns
	oc.ConnMaxLifetime = cfg.Database.ConnMaxLifetime
	oc.SlowThreshold = cfg.Database.SlowThreshold
	oc.TablePrefix = cfg.Database.TablePrefix
	oc.Logger = log.Zap()
	oc.Tracing = cfg.Tracing.Enabled
	if cfg.App.Debug {
		oc.LogLevel = "info"
	}
	return oc
}

func cacheConfig(cfg *config.AppConfig) *cache.Config {
	cc := cache.DefaultConfig()
	cc.Driver = cache.DriverType(cfg.Cache.Driver)
	cc.KeyPrefix = cfg.Cache.KeyPrefix
	cc.DefaultTTL = cfg.Cache.DefaultTTL
	if cc.Driver == cache.DriverRedis {
		rc := cache.DefaultRedisConfig()
		rc.Addr = cfg.Cache.Addr
		rc.Password = cfg.Cache.Password
		rc.DB = cfg.Cache.DB
		cc.Redis = rc
	}
	return cc
}

func storageConfig(cfg *config.AppConfig) *storage.Config {
	sc := storage.DefaultConfig()
	sc.Driver = storage.Driver(cfg.Storage.Driver)
	sc.Dir = cfg.Storage.LocalDir
	sc.URL = cfg.Storage.NATSURL
	sc.Bucket = cfg.Storage.Bucket
	return sc
}

func brokerConfig(cfg *config.AppConfig) *broker.Config {
	bc := broker.DefaultConfig()
	bc.Driver = broker.Driver(cfg.Broker.Driver)
	bc.Brokers = cfg.Broker.Brokers
	bc.URL = cfg.Broker.URL
	bc.Prefix = cfg.Broker.Topic
	bc.ClientID = cfg.Broker.ClientID
	return bc
}

// googleClient tokeninfo 客户端，网络错误、429 与 5xx 按默认退避重试
func googleClient(cfg *config.AppConfig, log logger.Logger) *request.Client {
	return request.New(
		request.WithTimeout(10*time.Second),
		request.WithRetry(request.DefaultRetryConfig()),
		request.WithLogger(log),
		request.WithTracing(cfg.Tracing.Enabled),
	)
}
