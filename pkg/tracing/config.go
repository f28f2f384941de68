package tracing

import (
	"errors"
	"fmt"
	"time"
)

// 导出器类型
const (
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterNoop     = "noop"
)

// ErrInvalidConfig 配置错误
var ErrInvalidConfig = errors.New("tracing: invalid config")

// Config 链路追踪配置
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string

	Exporter        string
	Endpoint        string
	ExporterHeaders map[string]string
	Insecure        bool

	// SamplingRate 父级未采样时按比例采样，0~1
	SamplingRate float64

	BatchTimeout       time.Duration
	MaxExportBatchSize int
	MaxQueueSize       int
}

// DefaultConfig 默认 stdout 导出、全量采样
func DefaultConfig() *Config {
	return &Config{
		Enabled:            true,
		ServiceName:        "advisor",
		ServiceVersion:     "1.0.0",
		Environment:        "development",
		Exporter:           ExporterStdout,
		SamplingRate:       1.0,
		BatchTimeout:       5 * time.Second,
		MaxExportBatchSize: 512,
		MaxQueueSize:       2048,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("%w: service name is required", ErrInvalidConfig)
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("%w: sampling rate must be between 0 and 1", ErrInvalidConfig)
	}
	switch c.Exporter {
	case ExporterStdout, ExporterOTLPHTTP, ExporterOTLPGRPC, ExporterNoop:
		return nil
	default:
		return fmt.Errorf("%w: unknown exporter %q", ErrInvalidConfig, c.Exporter)
	}
}
