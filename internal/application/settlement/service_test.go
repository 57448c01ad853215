package settlement

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/ordercore/internal/domain/order"
	"github.com/xiebiao/ordercore/internal/domain/payment"
	"github.com/xiebiao/ordercore/internal/infrastructure/gateway"
	"github.com/xiebiao/ordercore/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/ordercore/pkg/errors"
)

// memoryLedger 内存版支付账本（测试用），只增不改
type memoryLedger struct {
	mu     sync.Mutex
	txns   []*payment.Transaction
	nextID uint
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{}
}

func (l *memoryLedger) Create(_ context.Context, t *payment.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	t.ID = l.nextID
	copied := *t
	l.txns = append(l.txns, &copied)
	return nil
}

func (l *memoryLedger) FindByID(_ context.Context, id uint) (*payment.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.txns {
		if t.ID == id {
			copied := *t
			return &copied, nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (l *memoryLedger) ListByOrderID(_ context.Context, orderID string) ([]*payment.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result []*payment.Transaction
	for _, t := range l.txns {
		if t.OrderID == orderID {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (l *memoryLedger) SummaryByOrderID(_ context.Context, orderID string) (*payment.Summary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	summary := &payment.Summary{OrderID: orderID}
	for _, t := range l.txns {
		if t.OrderID == orderID {
			summary.Accumulate(t)
		}
	}
	return summary, nil
}

func (l *memoryLedger) SumRefundedByPaymentID(_ context.Context, paymentID uint) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var total int64
	for _, t := range l.txns {
		if t.RefundOfID == paymentID && t.Status == payment.StatusRefunded {
			total += -t.AmountCents
		}
	}
	return total, nil
}

// fakeRegistry 固定订单集合的注册表（测试用）
type fakeRegistry struct {
	orders map[string]bool
}

func (r *fakeRegistry) Exists(_ context.Context, orderID string) (bool, error) {
	return r.orders[orderID], nil
}

// stubGateway 确定性网关（测试用），强制给出成败结论
type stubGateway struct {
	mu           sync.Mutex
	chargeResult gateway.Result
	chargeErr    error
	refundResult gateway.Result
	refundErr    error
	charges      int
	refunds      int
}

func (g *stubGateway) Charge(_ context.Context, _ string, _ int64, _, _ string) (gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges++
	return g.chargeResult, g.chargeErr
}

func (g *stubGateway) Refund(_ context.Context, _ string, _ int64, _ string) (gateway.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds++
	return g.refundResult, g.refundErr
}

func newTestService(gw gateway.Gateway) (*Service, *memoryLedger) {
	ledger := newMemoryLedger()
	registry := &fakeRegistry{orders: map[string]bool{"order-1": true, "order-2": true}}
	return NewService(ledger, registry, gw, nil, nil, nil), ledger
}

func TestService_ProcessPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("网关受理成功写入COMPLETED行", func(t *testing.T) {
		gw := &stubGateway{chargeResult: gateway.Result{Succeeded: true}}
		svc, ledger := newTestService(gw)

		txn, err := svc.ProcessPayment(ctx, "order-1", 2500, "CNY", "alipay")
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCompleted, txn.Status)
		assert.Equal(t, int64(2500), txn.AmountCents)
		assert.True(t, strings.HasPrefix(txn.ExternalTransactionID, "PAY"))
		assert.NotZero(t, txn.ID)

		persisted, err := ledger.FindByID(ctx, txn.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCompleted, persisted.Status)
	})

	t.Run("网关拒绝写入FAILED行且不报错", func(t *testing.T) {
		gw := &stubGateway{chargeResult: gateway.Result{Succeeded: false}}
		svc, ledger := newTestService(gw)

		txn, err := svc.ProcessPayment(ctx, "order-1", 2500, "CNY", "alipay")
		require.NoError(t, err, "网关拒绝是结论不是错误")
		assert.Equal(t, payment.StatusFailed, txn.Status)

		// 失败流水不计入财务汇总
		summary, err := ledger.SummaryByOrderID(ctx, "order-1")
		require.NoError(t, err)
		assert.Zero(t, summary.TotalPaidCents)
	})

	t.Run("订单不存在", func(t *testing.T) {
		gw := &stubGateway{chargeResult: gateway.Result{Succeeded: true}}
		svc, ledger := newTestService(gw)

		_, err := svc.ProcessPayment(ctx, "order-999", 2500, "CNY", "alipay")
		require.Error(t, err)
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
		assert.Equal(t, apperrors.ErrCodeOrderNotFound, apperrors.CodeOf(err))
		assert.Zero(t, gw.charges, "校验失败不应触达网关")
		assert.Empty(t, ledger.txns)
	})

	t.Run("网关传输层错误不写账本", func(t *testing.T) {
		gw := &stubGateway{chargeErr: errors.New("网关超时")}
		svc, ledger := newTestService(gw)

		_, err := svc.ProcessPayment(ctx, "order-1", 2500, "CNY", "alipay")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeGatewayError, apperrors.CodeOf(err))
		assert.Empty(t, ledger.txns, "没有结论就不留痕，由调用方决定是否重试")
	})

	t.Run("参数校验", func(t *testing.T) {
		gw := &stubGateway{}
		svc, _ := newTestService(gw)

		_, err := svc.ProcessPayment(ctx, "", 2500, "CNY", "alipay")
		assert.ErrorIs(t, err, payment.ErrInvalidOrderID)

		_, err = svc.ProcessPayment(ctx, "order-1", 0, "CNY", "alipay")
		assert.ErrorIs(t, err, payment.ErrInvalidAmount)

		_, err = svc.ProcessPayment(ctx, "order-1", -100, "CNY", "alipay")
		assert.ErrorIs(t, err, payment.ErrInvalidAmount)

		_, err = svc.ProcessPayment(ctx, "order-1", 2500, "", "alipay")
		assert.ErrorIs(t, err, payment.ErrInvalidCurrency)

		_, err = svc.ProcessPayment(ctx, "order-1", 2500, "CNY", "")
		assert.ErrorIs(t, err, payment.ErrInvalidMethod)

		assert.Zero(t, gw.charges)
	})
}

func TestService_RefundPayment(t *testing.T) {
	ctx := context.Background()

	pay := func(t *testing.T, svc *Service, amount int64) *payment.Transaction {
		t.Helper()
		txn, err := svc.ProcessPayment(ctx, "order-1", amount, "CNY", "alipay")
		require.NoError(t, err)
		require.Equal(t, payment.StatusCompleted, txn.Status)
		return txn
	}

	t.Run("金额为0时默认全额退款", func(t *testing.T) {
		gw := &stubGateway{
			chargeResult: gateway.Result{Succeeded: true},
			refundResult: gateway.Result{Succeeded: true},
		}
		svc, _ := newTestService(gw)
		original := pay(t, svc, 2500)

		refund, err := svc.RefundPayment(ctx, original.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusRefunded, refund.Status)
		assert.Equal(t, int64(-2500), refund.AmountCents, "退款是负数金额的新行")
		assert.Equal(t, original.OrderID, refund.OrderID)
		assert.Equal(t, original.Currency, refund.Currency)
		assert.Equal(t, original.PaymentMethod, refund.PaymentMethod)
		assert.True(t, strings.HasPrefix(refund.ExternalTransactionID, "REF"))
		assert.NotEqual(t, original.ID, refund.ID, "原支付行永不被修改")
	})

	t.Run("累计退款不超过原支付金额", func(t *testing.T) {
		gw := &stubGateway{
			chargeResult: gateway.Result{Succeeded: true},
			refundResult: gateway.Result{Succeeded: true},
		}
		svc, _ := newTestService(gw)
		original := pay(t, svc, 2500)

		_, err := svc.RefundPayment(ctx, original.ID, 1000)
		require.NoError(t, err)

		// 剩余可退1500，再退1600应被拒绝
		_, err = svc.RefundPayment(ctx, original.ID, 1600)
		require.Error(t, err)
		assert.ErrorIs(t, err, payment.ErrInvalidAmount)
		assert.Equal(t, apperrors.ErrCodeInvalidAmount, apperrors.CodeOf(err))

		_, err = svc.RefundPayment(ctx, original.ID, 1500)
		require.NoError(t, err)

		summary, err := svc.Summary(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2500), summary.TotalRefundedCents)
		assert.Zero(t, summary.NetAmountCents)
	})

	t.Run("退款额度按原支付逐笔核算", func(t *testing.T) {
		gw := &stubGateway{
			chargeResult: gateway.Result{Succeeded: true},
			refundResult: gateway.Result{Succeeded: true},
		}
		svc, _ := newTestService(gw)

		// 同一订单下两笔独立支付
		p1 := pay(t, svc, 1000)
		p2 := pay(t, svc, 2000)

		// 全额退掉第二笔，不应挤占第一笔的可退余额
		refund2, err := svc.RefundPayment(ctx, p2.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, p2.ID, refund2.RefundOfID)

		refund1, err := svc.RefundPayment(ctx, p1.ID, 1000)
		require.NoError(t, err, "从未退款的支付应可全额退款")
		assert.Equal(t, p1.ID, refund1.RefundOfID)

		// 两笔各自的额度都已用尽
		_, err = svc.RefundPayment(ctx, p1.ID, 1)
		assert.ErrorIs(t, err, payment.ErrInvalidAmount)
		_, err = svc.RefundPayment(ctx, p2.ID, 1)
		assert.ErrorIs(t, err, payment.ErrInvalidAmount)

		summary, err := svc.Summary(ctx, "order-1")
		require.NoError(t, err)
		assert.Equal(t, int64(3000), summary.TotalPaidCents)
		assert.Equal(t, int64(3000), summary.TotalRefundedCents)
		assert.Zero(t, summary.NetAmountCents)
	})

	t.Run("非COMPLETED支付不可退款", func(t *testing.T) {
		gw := &stubGateway{chargeResult: gateway.Result{Succeeded: false}}
		svc, _ := newTestService(gw)

		failed, err := svc.ProcessPayment(ctx, "order-1", 2500, "CNY", "alipay")
		require.NoError(t, err)
		require.Equal(t, payment.StatusFailed, failed.Status)

		_, err = svc.RefundPayment(ctx, failed.ID, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, payment.ErrNotRefundable)
		assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.CodeOf(err))
	})

	t.Run("退款行自身不可再退款", func(t *testing.T) {
		gw := &stubGateway{
			chargeResult: gateway.Result{Succeeded: true},
			refundResult: gateway.Result{Succeeded: true},
		}
		svc, _ := newTestService(gw)
		original := pay(t, svc, 2500)

		refund, err := svc.RefundPayment(ctx, original.ID, 0)
		require.NoError(t, err)

		_, err = svc.RefundPayment(ctx, refund.ID, 0)
		assert.ErrorIs(t, err, payment.ErrNotRefundable)
	})

	t.Run("支付记录不存在", func(t *testing.T) {
		gw := &stubGateway{}
		svc, _ := newTestService(gw)

		_, err := svc.RefundPayment(ctx, 999, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, payment.ErrPaymentNotFound)
		assert.Equal(t, apperrors.ErrCodePaymentNotFound, apperrors.CodeOf(err))
	})

	t.Run("网关拒绝退款写入FAILED行且额度不受影响", func(t *testing.T) {
		gw := &stubGateway{
			chargeResult: gateway.Result{Succeeded: true},
			refundResult: gateway.Result{Succeeded: false},
		}
		svc, _ := newTestService(gw)
		original := pay(t, svc, 2500)

		refund, err := svc.RefundPayment(ctx, original.ID, 1000)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusFailed, refund.Status)

		// 失败的退款不计入汇总，额度未被占用
		gw.mu.Lock()
		gw.refundResult = gateway.Result{Succeeded: true}
		gw.mu.Unlock()

		_, err = svc.RefundPayment(ctx, original.ID, 2500)
		require.NoError(t, err, "失败退款不占用可退额度")
	})
}

func TestService_Summary(t *testing.T) {
	ctx := context.Background()
	gw := &stubGateway{
		chargeResult: gateway.Result{Succeeded: true},
		refundResult: gateway.Result{Succeeded: true},
	}
	svc, _ := newTestService(gw)

	txn, err := svc.ProcessPayment(ctx, "order-1", 2500, "CNY", "alipay")
	require.NoError(t, err)
	_, err = svc.RefundPayment(ctx, txn.ID, 1000)
	require.NoError(t, err)

	summary, err := svc.Summary(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), summary.TotalPaidCents)
	assert.Equal(t, int64(1000), summary.TotalRefundedCents)
	assert.Equal(t, int64(1500), summary.NetAmountCents)
	assert.Equal(t, payment.StatusRefunded, summary.LatestStatus)

	t.Run("无流水的订单返回零值汇总", func(t *testing.T) {
		summary, err := svc.Summary(ctx, "order-2")
		require.NoError(t, err)
		assert.Zero(t, summary.TotalPaidCents)
		assert.Zero(t, summary.NetAmountCents)
		assert.Empty(t, summary.LatestStatus)
	})

	t.Run("参数校验", func(t *testing.T) {
		_, err := svc.Summary(ctx, "")
		assert.ErrorIs(t, err, payment.ErrInvalidOrderID)
	})
}

func TestService_GatewayBreaker(t *testing.T) {
	ctx := context.Background()

	gw := &stubGateway{chargeErr: errors.New("网关超时")}
	ledger := newMemoryLedger()
	registry := &fakeRegistry{orders: map[string]bool{"order-1": true}}

	breaker := circuitbreaker.New("test-gateway", circuitbreaker.Config{
		Timeout: time.Minute,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})
	svc := NewService(ledger, registry, gw, breaker, nil, nil)

	// 连续失败两次后熔断器打开
	for i := 0; i < 2; i++ {
		_, err := svc.ProcessPayment(ctx, "order-1", 2500, "CNY", "alipay")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeGatewayError, apperrors.CodeOf(err))
	}
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State())

	// 熔断期间快速失败，不触达网关
	before := gw.charges
	_, err := svc.ProcessPayment(ctx, "order-1", 2500, "CNY", "alipay")
	require.Error(t, err)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpenState)
	assert.Equal(t, apperrors.ErrCodeGatewayTripped, apperrors.CodeOf(err))
	assert.Equal(t, before, gw.charges, "熔断期间请求不应触达网关")
	assert.Empty(t, ledger.txns)
}
