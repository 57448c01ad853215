package inventory

import (
	"context"
	"time"
)

// Repository 库存仓储接口（领域层定义）
//
// 教学要点：
// 1. 依赖倒置原则（高层定义接口，低层实现）
// 2. 批量预留/释放是多行写操作，必须由实现方保证原子性
//    （MySQL实现使用事务 + SELECT FOR UPDATE）
// 3. 领域层不依赖具体的数据库实现，便于单元测试（内存Mock）
type Repository interface {
	// GetBySKU 根据SKU获取库存，不存在返回ErrSKUNotFound
	GetBySKU(ctx context.Context, sku string) (*Item, error)

	// Create 创建库存记录（供初始化/补货入驻使用）
	Create(ctx context.Context, item *Item) error

	// Restock 补充库存（增加可售数量）
	Restock(ctx context.Context, sku string, quantity int) error

	// Reserve 批量预留库存
	//
	// 教学要点：整批是一个原子单元
	// - 对每个SKU加行锁后检查并扣减可售库存
	// - 为每项创建RESERVED预留记录
	// - 任意一项失败（SKU不存在/库存不足），整批回滚，两张表都不留痕
	Reserve(ctx context.Context, orderID string, items []ReserveItem, expiresAt time.Time) ([]*Reservation, error)

	// Confirm 将订单下所有RESERVED预留置为CONFIRMED
	// 返回实际迁移的行数；0行不是错误（幂等）
	Confirm(ctx context.Context, orderID string) (int64, error)

	// Release 释放订单下所有RESERVED/CONFIRMED预留
	// 原子地归还库存并置为RELEASED；返回实际释放的预留（幂等，无活跃预留返回空）
	Release(ctx context.Context, orderID string) ([]*Reservation, error)

	// FindExpired 查询已超时但仍为RESERVED的预留（供后台回收任务使用）
	FindExpired(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)

	// Expire 回收单条超时预留：归还库存并置为EXPIRED
	//
	// 教学要点：状态守卫更新（WHERE status = 'RESERVED'）
	// 与前台Release并发竞争时，后提交的一方影响0行并返回false，
	// 不会重复归还库存
	Expire(ctx context.Context, reservationID uint) (bool, error)
}
