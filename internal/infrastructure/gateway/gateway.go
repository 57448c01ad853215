package gateway

import "context"

// Result 网关调用结果
type Result struct {
	// Succeeded 网关是否受理成功
	Succeeded bool

	// Reference 网关侧关联令牌（Mock模式下为空，由调用方生成流水号）
	Reference string
}

// Gateway 支付网关能力（外部协作方）
//
// 教学要点：
// 1. 网关协议不属于本核心，只抽象为"给出成败结论"的能力
// 2. 以接口注入，测试中用确定性Mock强制COMPLETED/FAILED结果
// 3. 调用可能阻塞任意有界时长，绝不能在数据库事务内调用
type Gateway interface {
	// Charge 发起一笔支付
	Charge(ctx context.Context, orderID string, amountCents int64, currency, method string) (Result, error)

	// Refund 发起一笔退款
	Refund(ctx context.Context, externalTransactionID string, amountCents int64, currency string) (Result, error)
}
