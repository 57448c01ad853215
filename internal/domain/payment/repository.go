package payment

import "context"

// Repository 支付账本仓储接口
//
// 教学要点：
// 1. 只有Create一个写入口（Append-Only账本没有Update）
// 2. 每次Create是独立的短事务，不同订单的写入完全并行
type Repository interface {
	// Create 追加一条流水
	Create(ctx context.Context, t *Transaction) error

	// FindByID 根据流水ID查询，不存在返回ErrPaymentNotFound
	FindByID(ctx context.Context, id uint) (*Transaction, error)

	// ListByOrderID 查询订单下全部流水（按创建时间升序）
	ListByOrderID(ctx context.Context, orderID string) ([]*Transaction, error)

	// SummaryByOrderID 按需重算订单财务汇总
	// 只统计COMPLETED/REFUNDED行；无流水返回零值Summary
	SummaryByOrderID(ctx context.Context, orderID string) (*Summary, error)

	// SumRefundedByPaymentID 汇总某笔原支付已成功退款的金额（正数）
	// 只统计REFUNDED行；FAILED的退款尝试不占用可退余额
	SumRefundedByPaymentID(ctx context.Context, paymentID uint) (int64, error)
}
