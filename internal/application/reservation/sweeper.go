package reservation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/ordercore/internal/domain/inventory"
	"github.com/xiebiao/ordercore/pkg/clock"
	"github.com/xiebiao/ordercore/pkg/metrics"
	"github.com/xiebiao/ordercore/pkg/mq"
)

// Sweeper 超时预留回收任务
//
// 教学要点：
// 1. 预留的EXPIRED状态不是数据库自动生效的，
//    需要定时任务扫描expires_at已过的RESERVED行并回收
// 2. 每条预留的回收是独立的原子单元：
//    进程在扫描中途崩溃，最多留下有限的、下一轮可续扫的未回收量
// 3. 与前台Release的并发竞争由仓储层状态守卫解决，
//    本任务对"影响0行"只跳过，不报错
type Sweeper struct {
	repo      inventory.Repository
	cache     StockCache
	clock     clock.Clock
	publisher mq.Publisher
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

// NewSweeper 创建回收任务
func NewSweeper(
	repo inventory.Repository,
	cache StockCache,
	clk clock.Clock,
	publisher mq.Publisher,
	logger *zap.Logger,
	interval time.Duration,
	batchSize int,
) *Sweeper {
	if clk == nil {
		clk = clock.Real{}
	}
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Sweeper{
		repo:      repo,
		cache:     cache,
		clock:     clk,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run 启动定时回收循环，ctx取消后退出
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("超时预留回收任务启动",
		zap.Duration("interval", w.interval),
		zap.Int("batch_size", w.batchSize))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("超时预留回收任务退出")
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil {
				w.logger.Error("回收扫描失败", zap.Error(err))
			}
		}
	}
}

// SweepOnce 执行一轮回收，返回实际回收的预留数
func (w *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := w.clock.Now()

	expired, err := w.repo.FindExpired(ctx, now, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	reclaimed := 0
	for _, res := range expired {
		ok, err := w.repo.Expire(ctx, res.ID)
		if err != nil {
			// 单条失败不中断整轮，下一轮续扫
			w.logger.Error("回收超时预留失败",
				zap.Uint("reservation_id", res.ID),
				zap.String("order_id", res.OrderID),
				zap.Error(err))
			continue
		}
		if !ok {
			// 前台Release抢先提交，跳过
			continue
		}

		reclaimed++

		if w.cache != nil {
			_ = w.cache.Invalidate(ctx, res.SKU)
		}

		if err := w.publisher.Publish(ctx, mq.Event{
			RoutingKey: mq.RoutingKeyExpired,
			OrderID:    res.OrderID,
			OccurredAt: now,
			Payload:    res,
		}); err != nil {
			w.logger.Warn("超时事件发布失败",
				zap.String("order_id", res.OrderID),
				zap.Error(err))
		}
	}

	if reclaimed > 0 {
		w.logger.Info("回收超时预留完成",
			zap.Int("scanned", len(expired)),
			zap.Int("reclaimed", reclaimed))
		metrics.ObserveExpired(reclaimed)
	}

	return reclaimed, nil
}
