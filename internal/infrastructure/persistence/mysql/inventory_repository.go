package mysql

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/ordercore/internal/domain/inventory"
)

// inventoryRepository MySQL库存仓储实现
//
// 教学要点：
// 1. 批量预留是本仓储的核心正确性契约
//   - 整批在一个事务内完成，任意一项失败整批回滚
//   - 逐行SELECT FOR UPDATE，锁内检查再扣减，杜绝超卖
//
// 2. 释放/超时回收使用状态守卫更新
//   - WHERE status = 'RESERVED'（或IN RESERVED/CONFIRMED）
//   - 并发竞争时后提交方影响0行，库存只归还一次
type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository 创建库存仓储实例
func NewInventoryRepository(db *gorm.DB) inventory.Repository {
	return &inventoryRepository{db: db}
}

// GetBySKU 根据SKU获取库存
func (r *inventoryRepository) GetBySKU(ctx context.Context, sku string) (*inventory.Item, error) {
	var item inventory.Item

	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrSKUNotFound
		}
		return nil, fmt.Errorf("查询库存失败: %w", err)
	}

	return &item, nil
}

// Create 创建库存记录
func (r *inventoryRepository) Create(ctx context.Context, item *inventory.Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("创建库存失败: %w", err)
	}

	return nil
}

// Restock 补充库存
func (r *inventoryRepository) Restock(ctx context.Context, sku string, quantity int) error {
	if quantity <= 0 {
		return inventory.ErrInvalidQuantity
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := lockItem(tx, sku)
		if err != nil {
			return err
		}

		item.AvailableQuantity += quantity
		if err := tx.Save(item).Error; err != nil {
			return fmt.Errorf("补充库存失败: %w", err)
		}

		return nil
	})
}

// Reserve 批量预留库存
//
// 教学要点：防止超卖的完整流程
//
// 核心问题：库存超卖
// 场景：SKU库存10个，100个请求同时预留
// 错误实现：先查库存再判断再扣减（三步之间没有锁）
// 结果：100个请求都通过了判断，最后卖出100个
//
// 正确实现：悲观锁
//  1. SELECT FOR UPDATE 锁定库存行
//  2. 锁内检查库存是否充足
//  3. 扣减可售、增加预留
//  4. 创建预留记录
//  5. COMMIT释放锁
//
// 整批任意一项失败（SKU不存在/库存不足），事务回滚，两张表都不留痕
func (r *inventoryRepository) Reserve(ctx context.Context, orderID string, items []inventory.ReserveItem, expiresAt time.Time) ([]*inventory.Reservation, error) {
	if orderID == "" {
		return nil, inventory.ErrInvalidOrderID
	}
	if len(items) == 0 {
		return nil, inventory.ErrInvalidQuantity
	}

	// 按SKU排序后加锁，保证并发批量预留的加锁顺序一致，避免死锁
	sorted := make([]inventory.ReserveItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SKU < sorted[j].SKU })

	var reservations []*inventory.Reservation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reservations = reservations[:0]

		for _, it := range sorted {
			if it.Quantity <= 0 {
				return inventory.ErrInvalidQuantity
			}

			// 步骤1：锁定库存行（SELECT FOR UPDATE）
			item, err := lockItem(tx, it.SKU)
			if err != nil {
				return err
			}

			// 步骤2：锁内检查库存
			// 教学要点：必须在锁定后检查，否则并发扣减会超卖
			if !item.CanReserve(it.Quantity) {
				return inventory.ErrInsufficientStock
			}

			// 步骤3：可售 → 预留搬移数量（总库存不变）
			item.AvailableQuantity -= it.Quantity
			item.ReservedQuantity += it.Quantity

			if err := tx.Save(item).Error; err != nil {
				return fmt.Errorf("扣减库存失败: %w", err)
			}

			// 步骤4：创建预留记录
			res := &inventory.Reservation{
				OrderID:   orderID,
				SKU:       it.SKU,
				Quantity:  it.Quantity,
				Status:    inventory.ReservationStatusReserved,
				ExpiresAt: expiresAt,
			}
			if err := tx.Create(res).Error; err != nil {
				return fmt.Errorf("创建预留记录失败: %w", err)
			}

			reservations = append(reservations, res)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return reservations, nil
}

// Confirm 确认订单下所有RESERVED预留
// 单条UPDATE天然幂等：没有RESERVED行时影响0行，不是错误
func (r *inventoryRepository) Confirm(ctx context.Context, orderID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&inventory.Reservation{}).
		Where("order_id = ? AND status = ?", orderID, inventory.ReservationStatusReserved).
		Update("status", inventory.ReservationStatusConfirmed)

	if result.Error != nil {
		return 0, fmt.Errorf("确认预留失败: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// Release 释放订单下所有RESERVED/CONFIRMED预留
func (r *inventoryRepository) Release(ctx context.Context, orderID string) ([]*inventory.Reservation, error) {
	var released []*inventory.Reservation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		released = released[:0]

		// 锁定订单下的活跃预留，防止与后台回收任务双重归还
		var reservations []*inventory.Reservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ? AND status IN ?", orderID, []inventory.ReservationStatus{
				inventory.ReservationStatusReserved,
				inventory.ReservationStatusConfirmed,
			}).
			Find(&reservations).Error; err != nil {
			return fmt.Errorf("查询预留失败: %w", err)
		}

		for _, res := range reservations {
			// 状态守卫更新：行已被锁定，这里必然命中，但守卫仍保留作为防线
			guard := tx.Model(&inventory.Reservation{}).
				Where("id = ? AND status = ?", res.ID, res.Status).
				Update("status", inventory.ReservationStatusReleased)
			if guard.Error != nil {
				return fmt.Errorf("更新预留状态失败: %w", guard.Error)
			}
			if guard.RowsAffected == 0 {
				continue
			}

			if err := creditStock(tx, res.SKU, res.Quantity); err != nil {
				return err
			}

			res.Status = inventory.ReservationStatusReleased
			released = append(released, res)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return released, nil
}

// FindExpired 查询已超时但仍为RESERVED的预留
func (r *inventoryRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]*inventory.Reservation, error) {
	var reservations []*inventory.Reservation

	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", inventory.ReservationStatusReserved, now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&reservations).Error; err != nil {
		return nil, fmt.Errorf("查询超时预留失败: %w", err)
	}

	return reservations, nil
}

// Expire 回收单条超时预留
//
// 教学要点：与前台Release的竞争
// 先执行状态守卫更新，再归还库存：
// 若Release已抢先把该行置为RELEASED，这里影响0行并返回false，
// 库存不会被归还第二次
func (r *inventoryRepository) Expire(ctx context.Context, reservationID uint) (bool, error) {
	var reclaimed bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reclaimed = false

		var res inventory.Reservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&res, reservationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("锁定预留失败: %w", err)
		}

		// 状态守卫：只回收仍处于RESERVED的行
		guard := tx.Model(&inventory.Reservation{}).
			Where("id = ? AND status = ?", res.ID, inventory.ReservationStatusReserved).
			Update("status", inventory.ReservationStatusExpired)
		if guard.Error != nil {
			return fmt.Errorf("更新预留状态失败: %w", guard.Error)
		}
		if guard.RowsAffected == 0 {
			return nil
		}

		if err := creditStock(tx, res.SKU, res.Quantity); err != nil {
			return err
		}

		reclaimed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return reclaimed, nil
}

// lockItem 锁定库存行（SELECT FOR UPDATE）
// 教学要点：其他事务会等待此锁释放
func lockItem(tx *gorm.DB, sku string) (*inventory.Item, error) {
	var item inventory.Item

	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("sku = ?", sku).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrSKUNotFound
		}
		return nil, fmt.Errorf("锁定库存失败: %w", err)
	}

	return &item, nil
}

// creditStock 归还库存：预留 → 可售搬移数量
func creditStock(tx *gorm.DB, sku string, quantity int) error {
	item, err := lockItem(tx, sku)
	if err != nil {
		return err
	}

	item.AvailableQuantity += quantity
	item.ReservedQuantity -= quantity
	if item.ReservedQuantity < 0 {
		// 预留数量被归还成负数说明账目已坏，立刻中止事务
		return inventory.ErrNegativeReserved
	}

	if err := tx.Save(item).Error; err != nil {
		return fmt.Errorf("归还库存失败: %w", err)
	}

	return nil
}
