package logger

import "go.uber.org/zap/zapcore"

// Option 配置选项
type Option func(*Config)

// WithLevel 设置日志级别
func WithLevel(level Level) Option {
	return func(c *Config) { c.Level = level }
}

// WithFormat 设置日志格式
func WithFormat(format Format) Option {
	return func(c *Config) { c.Format = format }
}

// WithConsoleOutput 启用控制台输出
func WithConsoleOutput() Option {
	return func(c *Config) { c.Console = true }
}

// WithFileOutput 追加写入文件
func WithFileOutput(filename string) Option {
	return func(c *Config) { c.File = filename }
}

// WithRotateOutput 启用轮转文件输出
func WithRotateOutput(config *RotateConfig) Option {
	return func(c *Config) { c.Rotate = config }
}

// WithSampling 启用采样
func WithSampling(config *SamplingConfig) Option {
	return func(c *Config) { c.Sampling = config }
}

// WithCaller 是否记录调用位置
func WithCaller(enable bool) Option {
	return func(c *Config) { c.DisableCaller = !enable }
}

// WithStacktrace 是否为 Error 及以上级别记录堆栈
func WithStacktrace(enable bool) Option {
	return func(c *Config) { c.DisableStacktrace = !enable }
}

// WithEncoderConfig 自定义 Encoder
func WithEncoderConfig(config *zapcore.EncoderConfig) Option {
	return func(c *Config) { c.EncoderConfig = config }
}

// WithHook 添加 Hook
func WithHook(hook Hook) Option {
	return func(c *Config) { c.Hooks = append(c.Hooks, hook) }
}
