package inventory

import "errors"

// 领域错误定义
//
// 教学要点：
// 1. 库存错误分类
//    - 参数错误（请求未触库前拒绝）
//    - 业务冲突（库存不足、非法状态迁移）
//    - 资源不存在（未知SKU）
//
// 2. 未知SKU在只读查询中不是错误（返回不可用），
//    只有预留等写操作才返回ErrSKUNotFound
var (
	// 参数错误
	ErrInvalidSKU       = errors.New("无效的SKU")
	ErrInvalidOrderID   = errors.New("无效的订单ID")
	ErrInvalidQuantity  = errors.New("无效的预留数量")
	ErrInvalidPrice     = errors.New("无效的商品价格")
	ErrNegativeStock    = errors.New("可售库存不能为负数")
	ErrNegativeReserved = errors.New("预留库存不能为负数")

	// 业务冲突
	ErrInsufficientStock = errors.New("库存不足")

	// 资源不存在
	ErrSKUNotFound = errors.New("SKU不存在")
)
