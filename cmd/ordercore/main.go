package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/xiebiao/ordercore/internal/app"
	"github.com/xiebiao/ordercore/internal/infrastructure/config"
)

// main ordercore主程序
//
// 启动流程：
// 1. 加载配置 → 初始化日志
// 2. 组装核心（MySQL/Redis/可选MQ/服务）
// 3. 启动超时预留回收任务 + /metrics端点
// 4. 优雅关闭：收到信号后停掉后台任务，逆序关闭连接
func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		panic(err)
	}

	logger := newLogger(&cfg.Log)
	defer logger.Sync()

	core, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("组装核心失败", zap.Error(err))
	}
	defer core.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go core.Run(ctx)

	logger.Info("ordercore 启动成功")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到关闭信号，开始优雅关闭")
	cancel()
	logger.Info("ordercore 已安全关闭")
}

// newLogger 按配置构建zap日志器
func newLogger(cfg *config.LogConfig) *zap.Logger {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	if cfg.Level != "" {
		if level, err := zap.ParseAtomicLevel(cfg.Level); err == nil {
			zapCfg.Level = level
		}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
