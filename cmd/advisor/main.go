package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/tokmz/advisor/internal/server"
	"github.com/tokmz/advisor/pkg/config"
	"github.com/tokmz/advisor/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: search ./, ./configs, /etc/advisor)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 配置
	loader := config.NewLoader(configPath)
	defer loader.Close()
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	// 2. 日志
	lc, err := server.LoggerConfig(cfg)
	if err != nil {
		return err
	}
	log, err := logger.New(lc)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// 3. 组件与路由
	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Error("bootstrap failed", zap.Error(err))
		return err
	}

	// 4. 配置热更新，目前只切换日志级别
	if loader.ConfigFileUsed() != "" {
		err := loader.Watch(func(next *config.AppConfig) {
			level, err := logger.ParseLevel(next.Log.Level)
			if err != nil {
				log.Warn("ignore invalid log level", zap.String("level", next.Log.Level))
				return
			}
			if level != log.Level() {
				log.SetLevel(level)
				log.Info("log level changed", zap.String("level", level.String()))
			}
		})
		if err != nil {
			log.Warn("config watch disabled", zap.Error(err))
		}
	}

	log.Info("starting",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("config", loader.ConfigFileUsed()),
	)

	// 5. 阻塞直到收到信号，随后依次关闭 HTTP、连接管理器与各基础设施
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return err
	}
	log.Info("bye")
	return nil
}
