package config

import "strings"

// Option 配置选项
type Option func(*Config)

// WithConfigFile 指定配置文件完整路径
func WithConfigFile(path string) Option {
	return func(c *Config) { c.configFile = path }
}

// WithConfigName 设置配置文件名（不含扩展名）
func WithConfigName(name string) Option {
	return func(c *Config) { c.configName = name }
}

// WithConfigType 设置配置文件类型（yaml, json, toml）
func WithConfigType(typ string) Option {
	return func(c *Config) { c.configType = typ }
}

// WithConfigPaths 设置配置文件搜索路径
func WithConfigPaths(paths ...string) Option {
	return func(c *Config) { c.configPaths = paths }
}

// WithOptionalFile 找不到配置文件时仅使用默认值与环境变量
func WithOptionalFile(optional bool) Option {
	return func(c *Config) { c.optional = optional }
}

// WithAutoWatch Load 成功后自动监控配置文件
func WithAutoWatch(watch bool) Option {
	return func(c *Config) { c.autoWatch = watch }
}

// WithOnChange 添加配置变更回调
func WithOnChange(fn func()) Option {
	return func(c *Config) { c.onChange = append(c.onChange, fn) }
}

// WithOnError 设置错误回调
func WithOnError(fn func(error)) Option {
	return func(c *Config) { c.onError = fn }
}

// WithDefaults 设置默认值，键为点分路径
func WithDefaults(defaults map[string]any) Option {
	return func(c *Config) {
		if c.defaults == nil {
			c.defaults = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			c.defaults[k] = v
		}
	}
}

// WithEnvPrefix 设置环境变量前缀，同时启用 "." 到 "_" 的键名替换
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.envPrefix = prefix
		if c.envKeyReplacer == nil {
			c.envKeyReplacer = strings.NewReplacer(".", "_")
		}
	}
}

// WithEnvKeyReplacer 设置环境变量键名替换器
func WithEnvKeyReplacer(r *strings.Replacer) Option {
	return func(c *Config) { c.envKeyReplacer = r }
}
