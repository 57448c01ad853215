package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/xiebiao/ordercore/internal/domain/order"
)

// orderRegistry 订单注册表的MySQL实现
//
// 订单表由外部订单工作流拥有并写入，本核心只做存在性探测，
// 不定义订单模型、不参与订单表迁移
type orderRegistry struct {
	db *gorm.DB
}

// NewOrderRegistry 创建订单注册表实例
func NewOrderRegistry(db *gorm.DB) order.Registry {
	return &orderRegistry{db: db}
}

func (r *orderRegistry) Exists(ctx context.Context, orderID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Table("orders").
		Where("order_no = ?", orderID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("查询订单失败: %w", err)
	}
	return count > 0, nil
}
