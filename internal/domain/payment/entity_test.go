package payment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransaction_CanRefund(t *testing.T) {
	tests := []struct {
		name string
		txn  Transaction
		want bool
	}{
		{"已完成的支付可退款", Transaction{Status: StatusCompleted, AmountCents: 2500}, true},
		{"失败的支付不可退款", Transaction{Status: StatusFailed, AmountCents: 2500}, false},
		{"处理中的支付不可退款", Transaction{Status: StatusPending, AmountCents: 2500}, false},
		{"退款行自身不可再退款", Transaction{Status: StatusRefunded, AmountCents: -1000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.txn.CanRefund())
		})
	}
}

func TestTransaction_CountsTowardSummary(t *testing.T) {
	assert.True(t, (&Transaction{Status: StatusCompleted}).CountsTowardSummary())
	assert.True(t, (&Transaction{Status: StatusRefunded}).CountsTowardSummary())
	assert.False(t, (&Transaction{Status: StatusFailed}).CountsTowardSummary(), "失败流水不代表真实资金变动")
	assert.False(t, (&Transaction{Status: StatusPending}).CountsTowardSummary())
}

func TestSummary_Accumulate(t *testing.T) {
	t.Run("支付加退款", func(t *testing.T) {
		s := &Summary{OrderID: "order-1"}
		s.Accumulate(&Transaction{AmountCents: 2500, Status: StatusCompleted})
		s.Accumulate(&Transaction{AmountCents: -1000, Status: StatusRefunded})

		assert.Equal(t, int64(2500), s.TotalPaidCents)
		assert.Equal(t, int64(1000), s.TotalRefundedCents)
		assert.Equal(t, int64(1500), s.NetAmountCents)
		assert.Equal(t, StatusRefunded, s.LatestStatus)
	})

	t.Run("失败流水不计入", func(t *testing.T) {
		s := &Summary{OrderID: "order-1"}
		s.Accumulate(&Transaction{AmountCents: 2500, Status: StatusCompleted})
		s.Accumulate(&Transaction{AmountCents: 9999, Status: StatusFailed})

		assert.Equal(t, int64(2500), s.TotalPaidCents)
		assert.Equal(t, int64(2500), s.NetAmountCents)
		assert.Equal(t, StatusCompleted, s.LatestStatus)
	})

	t.Run("无流水时为零值", func(t *testing.T) {
		s := &Summary{OrderID: "order-1"}
		assert.Zero(t, s.TotalPaidCents)
		assert.Zero(t, s.NetAmountCents)
		assert.Empty(t, s.LatestStatus)
	})
}

func TestGenerateTransactionNo(t *testing.T) {
	no1 := GenerateTransactionNo(TransactionNoPrefixPay)
	no2 := GenerateTransactionNo(TransactionNoPrefixPay)
	refNo := GenerateTransactionNo(TransactionNoPrefixRefund)

	assert.True(t, strings.HasPrefix(no1, "PAY"))
	assert.True(t, strings.HasPrefix(refNo, "REF"))
	assert.NotEqual(t, no1, no2, "流水号必须唯一")
	// PAY(3) + 时间戳(14) + 随机段(12)
	assert.Len(t, no1, 29)
}
