package inventory

import "time"

// Item 库存实体（领域模型）
//
// 教学要点：
// 1. 库存实体的核心字段设计
//   - AvailableQuantity：当前可售库存
//   - ReservedQuantity：已预留库存（未支付订单占用）
//
//  2. 为什么需要ReservedQuantity？
//     场景：用户下单后30分钟内需要完成支付
//     - 如果直接扣减可售库存，用户不支付会永久占用库存
//     - 使用预留机制：下单预留 → 支付确认 → 超时回收
//
//  3. 核心不变式
//     AvailableQuantity + ReservedQuantity == 总库存（恒定）
//     总库存只通过补货变化，预留/释放只在两个字段间搬移数量
type Item struct {
	// SKU（主键）
	SKU string `gorm:"primaryKey;size:64;column:sku" json:"sku"`

	// 商品名称
	Name string `gorm:"size:255;not null" json:"name"`

	// 可售库存
	// 教学要点：预留时扣减此字段，搬移到ReservedQuantity
	AvailableQuantity int `gorm:"not null;default:0" json:"available_quantity"`

	// 已预留库存（未支付订单）
	// 教学要点：确认后保持占用，释放/超时后归还到AvailableQuantity
	ReservedQuantity int `gorm:"not null;default:0" json:"reserved_quantity"`

	// 单价（分）
	PriceCents int64 `gorm:"not null;default:0" json:"price_cents"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Item) TableName() string {
	return "inventory"
}

// Validate 验证库存实体
func (i *Item) Validate() error {
	if i.SKU == "" {
		return ErrInvalidSKU
	}

	if i.AvailableQuantity < 0 {
		return ErrNegativeStock
	}

	if i.ReservedQuantity < 0 {
		return ErrNegativeReserved
	}

	if i.PriceCents < 0 {
		return ErrInvalidPrice
	}

	return nil
}

// CanReserve 判断是否可以预留指定数量
// 教学要点：预留前的业务规则验证，必须在行锁内调用才有并发意义
func (i *Item) CanReserve(quantity int) bool {
	return quantity > 0 && i.AvailableQuantity >= quantity
}

// TotalStock 总库存 = 可售 + 已预留
// 用于库存盘点与一致性校验
func (i *Item) TotalStock() int {
	return i.AvailableQuantity + i.ReservedQuantity
}

// AvailabilityCheck 库存可用性查询结果（只读）
type AvailabilityCheck struct {
	SKU               string `json:"sku"`
	AvailableQuantity int    `json:"available_quantity"`
	IsAvailable       bool   `json:"is_available"`
	PriceCents        int64  `json:"price_cents"`
}
