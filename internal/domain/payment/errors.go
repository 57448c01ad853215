package payment

import "errors"

var (
	ErrPaymentNotFound = errors.New("支付记录不存在")
	ErrNotRefundable   = errors.New("支付不可退款")
	ErrInvalidAmount   = errors.New("支付金额异常")
	ErrInvalidOrderID  = errors.New("无效的订单ID")
	ErrInvalidCurrency = errors.New("无效的币种")
	ErrInvalidMethod   = errors.New("无效的支付方式")
)
