package inventory

import "time"

// ReservationStatus 预留状态枚举
//
// 教学要点：
// 状态机：RESERVED → CONFIRMED（支付成功）
//
//	RESERVED → RELEASED（主动释放）
//	CONFIRMED → RELEASED（确认后退单）
//	RESERVED → EXPIRED（超时回收，由后台任务触发）
//
// RELEASED和EXPIRED是终态，不允许再迁移
type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "RESERVED"  // 已预留（待确认）
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED" // 已确认（支付完成）
	ReservationStatusReleased  ReservationStatus = "RELEASED"  // 已释放（库存已归还）
	ReservationStatusExpired   ReservationStatus = "EXPIRED"   // 已超时（库存已回收）
)

// IsTerminal 判断是否为终态
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusReleased || s == ReservationStatusExpired
}

// Reservation 库存预留记录（领域模型）
//
// 教学要点：
// 1. 一条预留对应一个订单的一个SKU
// 2. 不变式：同一订单非终态预留按SKU汇总的数量，
//    必须等于从该SKU可售库存中原子扣减的数量
// 3. ExpiresAt之后未确认的预留由后台任务回收
type Reservation struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// 订单ID
	OrderID string `gorm:"size:64;not null;index:idx_order_id" json:"order_id"`

	// 商品SKU
	SKU string `gorm:"size:64;not null;index:idx_sku" json:"sku"`

	// 预留数量（必须为正）
	Quantity int `gorm:"not null" json:"quantity"`

	// 预留状态
	Status ReservationStatus `gorm:"type:varchar(20);not null;default:'RESERVED';index:idx_status_expires" json:"status"`

	// 过期时间
	// 教学要点：与Status联合索引，后台回收任务按(status, expires_at)扫描
	ExpiresAt time.Time `gorm:"not null;index:idx_status_expires" json:"expires_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Reservation) TableName() string {
	return "inventory_reservations"
}

// Validate 验证预留记录
func (r *Reservation) Validate() error {
	if r.OrderID == "" {
		return ErrInvalidOrderID
	}

	if r.SKU == "" {
		return ErrInvalidSKU
	}

	if r.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	return nil
}

// CanConfirm 判断是否可以确认
func (r *Reservation) CanConfirm() bool {
	return r.Status == ReservationStatusReserved
}

// CanRelease 判断是否可以释放（归还库存）
// 教学要点：RESERVED和CONFIRMED都占用库存，释放时都要归还
func (r *Reservation) CanRelease() bool {
	return r.Status == ReservationStatusReserved || r.Status == ReservationStatusConfirmed
}

// IsExpired 判断在给定时刻是否已超时
func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationStatusReserved && now.After(r.ExpiresAt)
}

// ReserveItem 预留请求中的一项（SKU + 数量）
type ReserveItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// DefaultExpiration 预留默认有效期
const DefaultExpiration = 30 * time.Minute
