package config

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

// startWatch 调用方必须持有 mu
func (c *Config) startWatch() {
	if c.watching || c.fileUsed == "" {
		return
	}
	c.watching = true
	if c.watchStarted {
		return
	}
	c.watchStarted = true
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		c.mu.RLock()
		watching := c.watching
		callbacks := append([]func(){}, c.onChange...)
		c.mu.RUnlock()

		if !watching {
			return
		}
		for _, fn := range callbacks {
			c.safeCall(fn)
		}
	})
	c.viper.WatchConfig()
}

// StartWatch 开始监控配置文件，重复调用无副作用
func (c *Config) StartWatch() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fileUsed == "" {
		return fmt.Errorf("%w: nothing to watch", ErrConfigNotFound)
	}
	c.startWatch()
	return nil
}

// StopWatch 停止触发回调。viper 不支持关闭底层 watcher，它在进程生命周期内持续运行
func (c *Config) StopWatch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watching = false
}

// OnChange 添加配置变更回调
func (c *Config) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// Watching 是否正在监控
func (c *Config) Watching() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.watching
}

func (c *Config) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.reportError(fmt.Errorf("config: change callback panic: %v", r))
		}
	}()
	fn()
}

// reportError 优先交给 onError，否则输出到 stderr
func (c *Config) reportError(err error) {
	c.mu.RLock()
	onError := c.onError
	c.mu.RUnlock()

	if onError != nil {
		onError(err)
		return
	}
	fmt.Fprintf(os.Stderr, "[config] %v\n", err)
}
