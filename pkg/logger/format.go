package logger

import "fmt"

// Format 日志格式
type Format string

const (
	JSONFormat    Format = "json"
	ConsoleFormat Format = "console"
)

// String 返回格式名称
func (f Format) String() string {
	return string(f)
}

// IsValid 检查格式是否有效
func (f Format) IsValid() bool {
	return f == JSONFormat || f == ConsoleFormat
}

// ParseFormat 解析格式名称，空字符串返回 JSONFormat
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return JSONFormat, nil
	}
	f := Format(s)
	if !f.IsValid() {
		return "", fmt.Errorf("logger: unknown format %q", s)
	}
	return f, nil
}
