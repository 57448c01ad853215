package reservation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/ordercore/internal/domain/inventory"
	redisstore "github.com/xiebiao/ordercore/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/ordercore/pkg/clock"
	apperrors "github.com/xiebiao/ordercore/pkg/errors"
	"github.com/xiebiao/ordercore/pkg/metrics"
	"github.com/xiebiao/ordercore/pkg/mq"
)

// StockCache 库存读缓存能力（可选注入）
type StockCache interface {
	Get(ctx context.Context, sku string) (*redisstore.StockSnapshot, error)
	Set(ctx context.Context, snapshot *redisstore.StockSnapshot) error
	Invalidate(ctx context.Context, skus ...string) error
}

// Service 库存预留服务（Reservation Manager）
//
// 教学要点：这是整个项目最核心的服务之一
// 涉及：批量原子预留、状态机迁移、超时回收、缓存失效
//
// 两个子系统（预留/支付结算）互不调用，由外部工作流协调；
// 本服务只保证自身操作的原子性与幂等性
type Service struct {
	repo              inventory.Repository
	cache             StockCache // 可为nil（未启用Redis时）
	clock             clock.Clock
	publisher         mq.Publisher
	logger            *zap.Logger
	defaultExpiration time.Duration
}

// NewService 创建预留服务
func NewService(
	repo inventory.Repository,
	cache StockCache,
	clk clock.Clock,
	publisher mq.Publisher,
	logger *zap.Logger,
	defaultExpiration time.Duration,
) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultExpiration <= 0 {
		defaultExpiration = inventory.DefaultExpiration
	}

	return &Service{
		repo:              repo,
		cache:             cache,
		clock:             clk,
		publisher:         publisher,
		logger:            logger,
		defaultExpiration: defaultExpiration,
	}
}

// CheckAvailability 查询库存可用性（只读，永不修改库存）
//
// 教学要点：未知SKU不是错误
// 对调用方而言"没有这个SKU"和"库存为0"的处理方式相同，
// 统一返回is_available=false
func (s *Service) CheckAvailability(ctx context.Context, sku string, quantity int) (*inventory.AvailabilityCheck, error) {
	if sku == "" {
		return nil, apperrors.Wrap(inventory.ErrInvalidSKU, apperrors.ErrCodeInvalidParams, "SKU不能为空")
	}
	if quantity <= 0 {
		return nil, apperrors.Wrap(inventory.ErrInvalidQuantity, apperrors.ErrCodeInvalidParams, "查询数量必须为正")
	}

	// 先查缓存
	if s.cache != nil {
		snapshot, err := s.cache.Get(ctx, sku)
		if err != nil {
			// 缓存故障只降级回源，不影响查询结果
			s.logger.Warn("库存缓存读取失败，回源MySQL", zap.String("sku", sku), zap.Error(err))
		} else if snapshot != nil {
			return &inventory.AvailabilityCheck{
				SKU:               sku,
				AvailableQuantity: snapshot.AvailableQuantity,
				IsAvailable:       snapshot.AvailableQuantity >= quantity,
				PriceCents:        snapshot.PriceCents,
			}, nil
		}
	}

	item, err := s.repo.GetBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, inventory.ErrSKUNotFound) {
			return &inventory.AvailabilityCheck{
				SKU:               sku,
				AvailableQuantity: 0,
				IsAvailable:       false,
			}, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageError, "查询库存失败")
	}

	// 回源后写入缓存（失败不影响结果）
	if s.cache != nil {
		_ = s.cache.Set(ctx, &redisstore.StockSnapshot{
			SKU:               item.SKU,
			AvailableQuantity: item.AvailableQuantity,
			PriceCents:        item.PriceCents,
		})
	}

	return &inventory.AvailabilityCheck{
		SKU:               item.SKU,
		AvailableQuantity: item.AvailableQuantity,
		IsAvailable:       item.CanReserve(quantity),
		PriceCents:        item.PriceCents,
	}, nil
}

// Reserve 为订单批量预留库存
//
// 整批是一个原子单元：任意一项失败（SKU不存在/库存不足），
// 两张表都不留痕。expiration<=0时使用默认有效期
func (s *Service) Reserve(ctx context.Context, orderID string, items []inventory.ReserveItem, expiration time.Duration) ([]*inventory.Reservation, error) {
	start := time.Now()

	if orderID == "" {
		return nil, apperrors.Wrap(inventory.ErrInvalidOrderID, apperrors.ErrCodeInvalidParams, "订单ID不能为空")
	}
	if len(items) == 0 {
		return nil, apperrors.Wrap(inventory.ErrInvalidQuantity, apperrors.ErrCodeInvalidParams, "预留明细不能为空")
	}
	for _, it := range items {
		if it.SKU == "" || it.Quantity <= 0 {
			return nil, apperrors.Wrap(inventory.ErrInvalidQuantity, apperrors.ErrCodeInvalidParams, "预留明细非法")
		}
	}

	if expiration <= 0 {
		expiration = s.defaultExpiration
	}
	expiresAt := s.clock.Now().Add(expiration)

	reservations, err := s.repo.Reserve(ctx, orderID, items, expiresAt)
	if err != nil {
		metrics.ObserveReservation("reserve", reserveResult(err), time.Since(start).Seconds())

		switch {
		case errors.Is(err, inventory.ErrSKUNotFound):
			return nil, apperrors.Wrap(err, apperrors.ErrCodeSKUNotFound, "SKU不存在")
		case errors.Is(err, inventory.ErrInsufficientStock):
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInsufficientStock, "库存不足")
		case errors.Is(err, inventory.ErrInvalidQuantity), errors.Is(err, inventory.ErrInvalidOrderID):
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidParams, "预留参数非法")
		default:
			return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageError, "预留库存失败")
		}
	}

	s.invalidateCache(ctx, reservations)
	s.publishEvent(ctx, mq.RoutingKeyReserved, orderID, reservations)

	s.logger.Info("库存预留成功",
		zap.String("order_id", orderID),
		zap.Int("items", len(reservations)),
		zap.Time("expires_at", expiresAt))
	metrics.ObserveReservation("reserve", "ok", time.Since(start).Seconds())

	return reservations, nil
}

// Confirm 确认订单的全部预留（RESERVED → CONFIRMED）
//
// 幂等：没有RESERVED预留（已确认过或根本不存在）是无操作，不是错误
func (s *Service) Confirm(ctx context.Context, orderID string) error {
	start := time.Now()

	if orderID == "" {
		return apperrors.Wrap(inventory.ErrInvalidOrderID, apperrors.ErrCodeInvalidParams, "订单ID不能为空")
	}

	confirmed, err := s.repo.Confirm(ctx, orderID)
	if err != nil {
		metrics.ObserveReservation("confirm", "error", time.Since(start).Seconds())
		return apperrors.Wrap(err, apperrors.ErrCodeStorageError, "确认预留失败")
	}

	if confirmed > 0 {
		s.publishEvent(ctx, mq.RoutingKeyConfirmed, orderID, nil)
	}

	s.logger.Info("预留确认完成",
		zap.String("order_id", orderID),
		zap.Int64("confirmed", confirmed))
	metrics.ObserveReservation("confirm", "ok", time.Since(start).Seconds())

	return nil
}

// Release 释放订单的全部活跃预留并归还库存
//
// 幂等：重复释放是无操作；与后台超时回收竞争时，
// 输掉的一方影响0行，库存只归还一次
func (s *Service) Release(ctx context.Context, orderID string) error {
	start := time.Now()

	if orderID == "" {
		return apperrors.Wrap(inventory.ErrInvalidOrderID, apperrors.ErrCodeInvalidParams, "订单ID不能为空")
	}

	released, err := s.repo.Release(ctx, orderID)
	if err != nil {
		metrics.ObserveReservation("release", "error", time.Since(start).Seconds())
		if errors.Is(err, inventory.ErrNegativeReserved) {
			// 归还后预留量为负说明账目已坏，与普通存储故障区分上报
			return apperrors.Wrap(err, apperrors.ErrCodeInvariantViolation, "库存账目不一致")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeStorageError, "释放预留失败")
	}

	if len(released) > 0 {
		s.invalidateCache(ctx, released)
		s.publishEvent(ctx, mq.RoutingKeyReleased, orderID, released)
	}

	s.logger.Info("预留释放完成",
		zap.String("order_id", orderID),
		zap.Int("released", len(released)))
	metrics.ObserveReservation("release", "ok", time.Since(start).Seconds())

	return nil
}

// CreateItem 创建库存记录（供初始化/商品入驻使用）
func (s *Service) CreateItem(ctx context.Context, item *inventory.Item) error {
	if err := s.repo.Create(ctx, item); err != nil {
		if errors.Is(err, inventory.ErrInvalidSKU) ||
			errors.Is(err, inventory.ErrNegativeStock) ||
			errors.Is(err, inventory.ErrNegativeReserved) ||
			errors.Is(err, inventory.ErrInvalidPrice) {
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidParams, "库存记录非法")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeStorageError, "创建库存失败")
	}
	return nil
}

// Restock 补充库存
func (s *Service) Restock(ctx context.Context, sku string, quantity int) error {
	if err := s.repo.Restock(ctx, sku, quantity); err != nil {
		switch {
		case errors.Is(err, inventory.ErrSKUNotFound):
			return apperrors.Wrap(err, apperrors.ErrCodeSKUNotFound, "SKU不存在")
		case errors.Is(err, inventory.ErrInvalidQuantity):
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidParams, "补货数量非法")
		default:
			return apperrors.Wrap(err, apperrors.ErrCodeStorageError, "补充库存失败")
		}
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, sku)
	}
	return nil
}

func (s *Service) invalidateCache(ctx context.Context, reservations []*inventory.Reservation) {
	if s.cache == nil || len(reservations) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(reservations))
	skus := make([]string, 0, len(reservations))
	for _, res := range reservations {
		if _, ok := seen[res.SKU]; ok {
			continue
		}
		seen[res.SKU] = struct{}{}
		skus = append(skus, res.SKU)
	}

	if err := s.cache.Invalidate(ctx, skus...); err != nil {
		s.logger.Warn("库存缓存失效失败", zap.Strings("skus", skus), zap.Error(err))
	}
}

func (s *Service) publishEvent(ctx context.Context, routingKey, orderID string, payload interface{}) {
	err := s.publisher.Publish(ctx, mq.Event{
		RoutingKey: routingKey,
		OrderID:    orderID,
		OccurredAt: s.clock.Now(),
		Payload:    payload,
	})
	if err != nil {
		// 事件是尽力而为的通知，发布失败不回滚业务
		s.logger.Warn("领域事件发布失败",
			zap.String("routing_key", routingKey),
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}

func reserveResult(err error) string {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, inventory.ErrSKUNotFound):
		return "not_found"
	default:
		return "error"
	}
}
