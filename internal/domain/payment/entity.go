package payment

import "time"

// Transaction 支付流水（账本条目）
//
// 教学要点：
// 1. 账本式设计：流水只增不改（Append-Only）
//   - 支付是正数金额的新行
//   - 退款是负数金额的新行，永远不修改原支付行
//
// 2. 为什么用带符号金额而不是可变余额？
//   - 订单财务汇总随时可以从流水重算，不存在缓存失真
//   - 并发写天然可交换：两笔退款各自追加，汇总结果与先后无关
//   - 没有对共享余额字段的读-改-写竞争
//
// 3. ExternalTransactionID：外部网关返回的关联令牌（Mock模式下自行生成）
type Transaction struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// 订单ID
	OrderID string `gorm:"size:64;not null;index:idx_order_id" json:"order_id"`

	// 金额（分，带符号：正数=支付，负数=退款）
	AmountCents int64 `gorm:"not null" json:"amount_cents"`

	// 币种
	Currency string `gorm:"size:8;not null" json:"currency"`

	// 流水状态
	Status Status `gorm:"type:varchar(20);not null;index" json:"status"`

	// 支付方式
	PaymentMethod string `gorm:"size:32;not null" json:"payment_method"`

	// 外部交易流水号
	ExternalTransactionID string `gorm:"size:64;not null;uniqueIndex" json:"external_transaction_id"`

	// 原支付流水ID（仅退款行填写；退款额度按原支付逐笔核算，
	// 同一订单下多笔支付的可退余额互不挤占）
	RefundOfID uint `gorm:"not null;default:0;index" json:"refund_of_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "payments"
}

// Status 支付流水状态枚举
type Status string

const (
	StatusPending   Status = "PENDING"   // 处理中
	StatusCompleted Status = "COMPLETED" // 支付成功
	StatusFailed    Status = "FAILED"    // 失败
	StatusRefunded  Status = "REFUNDED"  // 退款成功
)

// CanRefund 判断是否可以退款
//
// 教学要点：
// 业务规则：只有COMPLETED状态的原始支付才能退款
// 退款行自身（REFUNDED）不能再被退款
func (t *Transaction) CanRefund() bool {
	return t.Status == StatusCompleted && t.AmountCents > 0
}

// IsRefund 判断是否为退款行
func (t *Transaction) IsRefund() bool {
	return t.AmountCents < 0
}

// CountsTowardSummary 判断是否计入财务汇总
// PENDING/FAILED不代表真实资金变动，排除在外
func (t *Transaction) CountsTowardSummary() bool {
	return t.Status == StatusCompleted || t.Status == StatusRefunded
}

// Summary 订单财务汇总（派生数据，不落库）
//
// 教学要点：每次按需从payments表重算，与账本永远一致
type Summary struct {
	OrderID string `json:"order_id"`

	// 累计支付金额（正数行之和）
	TotalPaidCents int64 `json:"total_paid_cents"`

	// 累计退款金额（负数行绝对值之和）
	TotalRefundedCents int64 `json:"total_refunded_cents"`

	// 净额 = 支付 - 退款（带符号求和）
	NetAmountCents int64 `json:"net_amount_cents"`

	// 最近一笔计入汇总的流水状态；无流水时为空字符串
	LatestStatus Status `json:"latest_status"`
}

// Accumulate 将一条计入汇总的流水累加进Summary
func (s *Summary) Accumulate(t *Transaction) {
	if !t.CountsTowardSummary() {
		return
	}

	if t.AmountCents >= 0 {
		s.TotalPaidCents += t.AmountCents
	} else {
		s.TotalRefundedCents += -t.AmountCents
	}
	s.NetAmountCents += t.AmountCents
	s.LatestStatus = t.Status
}
