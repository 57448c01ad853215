package errors

import (
	"errors"
	"fmt"
)

// AppError 自定义应用错误
// 设计说明：
// 1. Code用于调用方判断错误类别（不要直接暴露HTTP状态码）
// 2. Message是面向调用方的提示信息
// 3. Err是内部错误，仅记录到日志，不返回给调用方（防止泄露实现细节）
type AppError struct {
	Code    int    `json:"code"`    // 业务错误码
	Message string `json:"message"` // 错误提示
	Err     error  `json:"-"`       // 内部错误（不序列化）
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Is和errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装系统错误（如数据库错误、网关超时）
// 用途：将底层错误转换为业务错误，隐藏实现细节
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf 提取错误的业务错误码；非AppError返回ErrCodeInternal
func CodeOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// =========================================
// 错误码定义
// =========================================
// 规范：
// - 400xx: 业务冲突（库存不足、非法状态）
// - 404xx: 资源不存在
// - 409xx: 参数错误（未触库即拒绝）
// - 500xx: 系统错误（存储不可用、网关超时，调用方可自行重试）
// - 599xx: 不变式被破坏（正常运行不应出现，出现即缺陷）

const (
	// 业务冲突（40000-40099）
	ErrCodeConflict          = 40000 // 业务冲突（通用）
	ErrCodeInsufficientStock = 40001 // 库存不足
	ErrCodeInvalidState      = 40002 // 非法状态迁移/不可退款

	// 资源不存在（40400-40499）
	ErrCodeNotFound        = 40400 // 资源不存在（通用）
	ErrCodeSKUNotFound     = 40401 // SKU不存在
	ErrCodeOrderNotFound   = 40402 // 订单不存在
	ErrCodePaymentNotFound = 40403 // 支付记录不存在

	// 参数错误（40900-40999）
	ErrCodeInvalidParams = 40900 // 参数错误
	ErrCodeInvalidAmount = 40901 // 金额非法

	// 系统错误（50000-50099）
	// 教学要点：核心内部绝不静默重试（重试可能重复扣款/重复预留），
	// 是否重试由调用方决定
	ErrCodeInternal       = 50000 // 内部错误
	ErrCodeStorageError   = 50001 // 存储不可用
	ErrCodeGatewayError   = 50002 // 网关错误/超时
	ErrCodeGatewayTripped = 50003 // 网关熔断中

	// 不变式被破坏（59900-59999）
	ErrCodeInvariantViolation = 59900
)

// =========================================
// 预定义错误（避免每次都New）
// =========================================

var (
	ErrInternal     = New(ErrCodeInternal, "系统内部错误")
	ErrStorageError = New(ErrCodeStorageError, "存储服务错误")
	ErrGatewayError = New(ErrCodeGatewayError, "支付网关错误")

	ErrSKUNotFound     = New(ErrCodeSKUNotFound, "SKU不存在")
	ErrOrderNotFound   = New(ErrCodeOrderNotFound, "订单不存在")
	ErrPaymentNotFound = New(ErrCodePaymentNotFound, "支付记录不存在")

	ErrInsufficientStock = New(ErrCodeInsufficientStock, "库存不足")
	ErrInvalidState      = New(ErrCodeInvalidState, "非法的状态迁移")
	ErrInvalidParams     = New(ErrCodeInvalidParams, "参数错误")
	ErrInvalidAmount     = New(ErrCodeInvalidAmount, "金额非法")
)
