package order

import (
	"context"
	"errors"
)

// Registry 订单注册表能力（外部协作方）
//
// 教学要点：
// 订单本身由外部工作流拥有，本核心只消费"订单是否存在"这一个能力，
// 用于支付前校验。接口定义在领域层，MySQL实现在infrastructure层
type Registry interface {
	// Exists 判断订单是否存在
	Exists(ctx context.Context, orderID string) (bool, error)
}

var ErrOrderNotFound = errors.New("订单不存在")
