package app

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xiebiao/ordercore/internal/application/reservation"
	"github.com/xiebiao/ordercore/internal/application/settlement"
	"github.com/xiebiao/ordercore/internal/infrastructure/config"
	"github.com/xiebiao/ordercore/internal/infrastructure/gateway"
	"github.com/xiebiao/ordercore/internal/infrastructure/persistence/mysql"
	redisstore "github.com/xiebiao/ordercore/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/ordercore/pkg/circuitbreaker"
	"github.com/xiebiao/ordercore/pkg/clock"
	"github.com/xiebiao/ordercore/pkg/metrics"
	"github.com/xiebiao/ordercore/pkg/mq"
)

// App 组装完成的核心容器
//
// 教学要点：
// Reservation和Settlement是嵌入方（订单工作流）消费的公开操作面，
// 本核心不为它们暴露HTTP/gRPC接口；
// Sweeper是核心自己负责的后台职责，由Run启动
type App struct {
	Reservation *reservation.Service
	Settlement  *settlement.Service
	Sweeper     *reservation.Sweeper

	cfg     *config.Config
	logger  *zap.Logger
	closers []func() error
}

// New 按配置组装核心
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	// MySQL（迁移表结构）
	db, err := mysql.NewDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	logger.Info("数据库连接成功")

	// Redis读缓存
	redisClient, err := redisstore.NewClient(&cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, redisClient.Close)
	logger.Info("Redis连接成功")

	stockCache := redisstore.NewStockCache(redisClient, cfg.Redis.GetCacheTTL())

	// 可选的MQ事件发布
	var publisher mq.Publisher = mq.NopPublisher{}
	if cfg.MQ.Enabled {
		amqpPublisher, err := mq.NewPublisher(cfg.MQ.URL, cfg.MQ.Exchange)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, amqpPublisher.Close)
		publisher = amqpPublisher
		logger.Info("RabbitMQ连接成功", zap.String("exchange", cfg.MQ.Exchange))
	}

	// 仓储与协作方能力
	inventoryRepo := mysql.NewInventoryRepository(db)
	paymentRepo := mysql.NewPaymentRepository(db)
	orderRegistry := mysql.NewOrderRegistry(db)

	breaker := circuitbreaker.New("payment-gateway", circuitbreaker.Config{
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn("熔断器状态变化",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.SetBreakerState(float64(to))
		},
	})

	gw := gateway.NewMockGateway(
		cfg.Gateway.PaySuccessRate,
		cfg.Gateway.RefundSuccessRate,
		cfg.Gateway.GetLatency(),
	)

	systemClock := clock.Real{}

	a.Reservation = reservation.NewService(
		inventoryRepo, stockCache, systemClock, publisher, logger,
		cfg.Reservation.GetDefaultExpiration(),
	)
	a.Settlement = settlement.NewService(
		paymentRepo, orderRegistry, gw, breaker, publisher, logger,
	)
	a.Sweeper = reservation.NewSweeper(
		inventoryRepo, stockCache, systemClock, publisher, logger,
		cfg.Reservation.GetSweepInterval(),
		cfg.Reservation.SweepBatchSize,
	)

	return a, nil
}

// Run 启动后台职责（超时预留回收、/metrics端点），ctx取消后返回
func (a *App) Run(ctx context.Context) {
	if a.cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(a.cfg.Metrics.Addr, mux); err != nil {
				a.logger.Error("metrics端点启动失败", zap.Error(err))
			}
		}()
		a.logger.Info("metrics端点启动", zap.String("addr", a.cfg.Metrics.Addr))
	}

	a.Sweeper.Run(ctx)
}

// Close 逆序关闭持有的连接
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("关闭资源失败", zap.Error(err))
		}
	}
}
