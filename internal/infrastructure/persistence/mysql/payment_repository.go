package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/xiebiao/ordercore/internal/domain/payment"
)

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付账本仓储实例
func NewPaymentRepository(db *gorm.DB) payment.Repository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, t *payment.Transaction) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		if isDuplicateError(err) {
			return fmt.Errorf("外部流水号冲突: %w", err)
		}
		return fmt.Errorf("创建支付流水失败: %w", err)
	}
	return nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uint) (*payment.Transaction, error) {
	var t payment.Transaction
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("查询支付流水失败: %w", err)
	}
	return &t, nil
}

func (r *paymentRepository) ListByOrderID(ctx context.Context, orderID string) ([]*payment.Transaction, error) {
	var list []*payment.Transaction
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("查询订单流水失败: %w", err)
	}
	return list, nil
}

// SummaryByOrderID 按需重算订单财务汇总
//
// 教学要点：汇总不落库
// 每次从payments表聚合，读到什么账本就是什么汇总，
// 不存在缓存余额与账本漂移的问题
func (r *paymentRepository) SummaryByOrderID(ctx context.Context, orderID string) (*payment.Summary, error) {
	list, err := r.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	summary := &payment.Summary{OrderID: orderID}
	for _, t := range list {
		summary.Accumulate(t)
	}

	return summary, nil
}

// SumRefundedByPaymentID 汇总某笔原支付已成功退款的金额
//
// 退款行的金额为负，取SUM(-amount_cents)得到正数的已退总额；
// 按refund_of_id逐笔核算，同一订单下其他支付的退款不计入
func (r *paymentRepository) SumRefundedByPaymentID(ctx context.Context, paymentID uint) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&payment.Transaction{}).
		Where("refund_of_id = ? AND status = ?", paymentID, payment.StatusRefunded).
		Select("COALESCE(SUM(-amount_cents), 0)").
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("汇总已退款金额失败: %w", err)
	}
	return total, nil
}
