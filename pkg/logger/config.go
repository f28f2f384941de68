package logger

import "go.uber.org/zap/zapcore"

// Config 日志配置
type Config struct {
	Level  Level  // 默认 InfoLevel
	Format Format // json/console，默认 json

	Console bool          // 输出到标准输出
	File    string        // 追加写入的文件路径
	Rotate  *RotateConfig // 轮转文件，nil 则不启用

	Sampling *SamplingConfig // nil 则不采样

	DisableCaller     bool
	DisableStacktrace bool // Error 及以上默认附带堆栈

	EncoderConfig *zapcore.EncoderConfig
	Hooks         []Hook
}

// RotateConfig 文件轮转配置
type RotateConfig struct {
	Filename   string
	MaxSize    int // MB，默认 100
	MaxAge     int // 天，默认 30
	MaxBackups int // 默认 10
	LocalTime  bool
	Compress   bool
}

// SamplingConfig 采样配置：每秒前 Initial 条全部记录，之后每 Thereafter 条记录 1 条
type SamplingConfig struct {
	Initial    int
	Thereafter int
}

func (c *Config) setDefaults() {
	if c.Format == "" {
		c.Format = JSONFormat
	}
	if !c.Console && c.File == "" && c.Rotate == nil {
		c.Console = true
	}
	if c.Rotate != nil {
		c.Rotate.setDefaults()
	}
	if c.Sampling != nil {
		c.Sampling.setDefaults()
	}
}

func (r *RotateConfig) setDefaults() {
	if r.MaxSize <= 0 {
		r.MaxSize = 100
	}
	if r.MaxAge <= 0 {
		r.MaxAge = 30
	}
	if r.MaxBackups <= 0 {
		r.MaxBackups = 10
	}
}

func (s *SamplingConfig) setDefaults() {
	if s.Initial <= 0 {
		s.Initial = 100
	}
	if s.Thereafter <= 0 {
		s.Thereafter = 100
	}
}
