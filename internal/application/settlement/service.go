package settlement

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/ordercore/internal/domain/order"
	"github.com/xiebiao/ordercore/internal/domain/payment"
	"github.com/xiebiao/ordercore/internal/infrastructure/gateway"
	"github.com/xiebiao/ordercore/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/ordercore/pkg/errors"
	"github.com/xiebiao/ordercore/pkg/metrics"
	"github.com/xiebiao/ordercore/pkg/mq"
)

// Service 支付结算引擎（Payment Settlement Engine）
//
// 教学要点：
// 1. 网关调用与账本写入不在同一个原子单元
//   - 网关调用可能阻塞任意有界时长，绝不能占着数据库事务等结论
//   - 结论确定后，账本写入是独立的短事务
//
// 2. 账本行必须反映真实结论（COMPLETED或FAILED），没有中间态
//   - 网关传输层错误（超时/熔断）不写账本，向调用方返回可重试错误
//   - 是否重试由调用方决定，核心内部绝不静默重试（可能重复扣款）
type Service struct {
	repo      payment.Repository
	registry  order.Registry
	gateway   gateway.Gateway
	breaker   *circuitbreaker.CircuitBreaker
	publisher mq.Publisher
	logger    *zap.Logger
}

// NewService 创建结算服务
// breaker可为nil（不启用熔断保护）
func NewService(
	repo payment.Repository,
	registry order.Registry,
	gw gateway.Gateway,
	breaker *circuitbreaker.CircuitBreaker,
	publisher mq.Publisher,
	logger *zap.Logger,
) *Service {
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:      repo,
		registry:  registry,
		gateway:   gw,
		breaker:   breaker,
		publisher: publisher,
		logger:    logger,
	}
}

// ProcessPayment 处理一笔支付
//
// 网关给出失败结论时写入FAILED行并正常返回（失败是状态不是错误）；
// 只有参数/订单校验失败或基础设施故障才返回error
func (s *Service) ProcessPayment(ctx context.Context, orderID string, amountCents int64, currency, method string) (*payment.Transaction, error) {
	if orderID == "" {
		return nil, apperrors.Wrap(payment.ErrInvalidOrderID, apperrors.ErrCodeInvalidParams, "订单ID不能为空")
	}
	if amountCents <= 0 {
		return nil, apperrors.Wrap(payment.ErrInvalidAmount, apperrors.ErrCodeInvalidAmount, "支付金额必须为正")
	}
	if currency == "" {
		return nil, apperrors.Wrap(payment.ErrInvalidCurrency, apperrors.ErrCodeInvalidParams, "币种不能为空")
	}
	if method == "" {
		return nil, apperrors.Wrap(payment.ErrInvalidMethod, apperrors.ErrCodeInvalidParams, "支付方式不能为空")
	}

	// 订单存在性校验（订单注册表是外部协作方能力）
	exists, err := s.registry.Exists(ctx, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageError, "查询订单失败")
	}
	if !exists {
		return nil, apperrors.Wrap(order.ErrOrderNotFound, apperrors.ErrCodeOrderNotFound, "订单不存在")
	}

	// 调用网关（在任何数据库事务之外）
	result, err := s.callGateway(func() (gateway.Result, error) {
		return s.gateway.Charge(ctx, orderID, amountCents, currency, method)
	})
	if err != nil {
		return nil, err
	}

	status := payment.StatusFailed
	if result.Succeeded {
		status = payment.StatusCompleted
	}

	t := &payment.Transaction{
		OrderID:               orderID,
		AmountCents:           amountCents,
		Currency:              currency,
		Status:                status,
		PaymentMethod:         method,
		ExternalTransactionID: payment.GenerateTransactionNo(payment.TransactionNoPrefixPay),
	}

	// 结论确定后的独立短事务
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageError, "写入支付流水失败")
	}

	metrics.ObservePayment("payment", string(status))
	if status == payment.StatusCompleted {
		s.publishEvent(ctx, mq.RoutingKeyPayment, t)
	}

	s.logger.Info("支付处理完成",
		zap.String("order_id", orderID),
		zap.Int64("amount_cents", amountCents),
		zap.String("status", string(status)),
		zap.String("external_transaction_id", t.ExternalTransactionID),
		zap.String("gateway_reference", result.Reference))

	return t, nil
}

// RefundPayment 对一笔已完成支付发起退款
//
// amountCents为0时默认退原支付全额；
// 针对同一笔原支付的累计退款不允许超过其支付金额
func (s *Service) RefundPayment(ctx context.Context, paymentID uint, amountCents int64) (*payment.Transaction, error) {
	if amountCents < 0 {
		return nil, apperrors.Wrap(payment.ErrInvalidAmount, apperrors.ErrCodeInvalidAmount, "退款金额非法")
	}

	original, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodePaymentNotFound, "支付记录不存在")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageError, "查询支付记录失败")
	}

	// 只有COMPLETED的原始支付可退款
	if !original.CanRefund() {
		return nil, apperrors.Wrap(payment.ErrNotRefundable, apperrors.ErrCodeInvalidState, "支付不可退款")
	}

	if amountCents == 0 {
		amountCents = original.AmountCents
	}

	// 累计退款封顶校验：额度按原支付逐笔核算，
	// 同一订单下多笔支付的可退余额互不挤占
	refunded, err := s.repo.SumRefundedByPaymentID(ctx, original.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageError, "汇总已退款金额失败")
	}
	remaining := original.AmountCents - refunded
	if amountCents > remaining {
		return nil, apperrors.Wrap(payment.ErrInvalidAmount, apperrors.ErrCodeInvalidAmount, "退款金额超过可退余额")
	}

	result, err := s.callGateway(func() (gateway.Result, error) {
		return s.gateway.Refund(ctx, original.ExternalTransactionID, amountCents, original.Currency)
	})
	if err != nil {
		return nil, err
	}

	status := payment.StatusFailed
	if result.Succeeded {
		status = payment.StatusRefunded
	}

	// 退款是新的负数行，携带原支付的订单/币种/支付方式并指回原支付，
	// 永不修改原行
	t := &payment.Transaction{
		OrderID:               original.OrderID,
		AmountCents:           -amountCents,
		Currency:              original.Currency,
		Status:                status,
		PaymentMethod:         original.PaymentMethod,
		ExternalTransactionID: payment.GenerateTransactionNo(payment.TransactionNoPrefixRefund),
		RefundOfID:            original.ID,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageError, "写入退款流水失败")
	}

	metrics.ObservePayment("refund", string(status))
	if status == payment.StatusRefunded {
		s.publishEvent(ctx, mq.RoutingKeyRefund, t)
	}

	s.logger.Info("退款处理完成",
		zap.Uint("payment_id", paymentID),
		zap.String("order_id", original.OrderID),
		zap.Int64("amount_cents", amountCents),
		zap.String("status", string(status)))

	return t, nil
}

// Summary 按需重算订单财务汇总
// 无流水的订单返回零值汇总（LatestStatus为空），不是错误
func (s *Service) Summary(ctx context.Context, orderID string) (*payment.Summary, error) {
	if orderID == "" {
		return nil, apperrors.Wrap(payment.ErrInvalidOrderID, apperrors.ErrCodeInvalidParams, "订单ID不能为空")
	}

	summary, err := s.repo.SummaryByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageError, "查询订单汇总失败")
	}

	return summary, nil
}

// callGateway 在熔断器保护下调用网关
func (s *Service) callGateway(call func() (gateway.Result, error)) (gateway.Result, error) {
	start := time.Now()

	var result gateway.Result
	invoke := func() error {
		var err error
		result, err = call()
		return err
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(invoke)
	} else {
		err = invoke()
	}

	if metrics.PaymentGatewayDuration != nil {
		metrics.PaymentGatewayDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpenState) {
			return gateway.Result{}, apperrors.Wrap(err, apperrors.ErrCodeGatewayTripped, "支付网关熔断中")
		}
		return gateway.Result{}, apperrors.Wrap(err, apperrors.ErrCodeGatewayError, "支付网关调用失败")
	}

	return result, nil
}

func (s *Service) publishEvent(ctx context.Context, routingKey string, t *payment.Transaction) {
	err := s.publisher.Publish(ctx, mq.Event{
		RoutingKey: routingKey,
		OrderID:    t.OrderID,
		OccurredAt: time.Now(),
		Payload:    t,
	})
	if err != nil {
		// 事件是尽力而为的通知，发布失败不回滚账本
		s.logger.Warn("领域事件发布失败",
			zap.String("routing_key", routingKey),
			zap.String("order_id", t.OrderID),
			zap.Error(err))
	}
}
