package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr error
	}{
		{"合法库存", Item{SKU: "item-001", Name: "测试商品", AvailableQuantity: 10, PriceCents: 1999}, nil},
		{"SKU为空", Item{Name: "测试商品"}, ErrInvalidSKU},
		{"可售库存为负", Item{SKU: "item-001", AvailableQuantity: -1}, ErrNegativeStock},
		{"预留库存为负", Item{SKU: "item-001", ReservedQuantity: -1}, ErrNegativeReserved},
		{"价格为负", Item{SKU: "item-001", PriceCents: -100}, ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestItem_CanReserve(t *testing.T) {
	item := Item{SKU: "item-001", AvailableQuantity: 5}

	assert.True(t, item.CanReserve(5), "刚好等于可售库存应该可以预留")
	assert.True(t, item.CanReserve(1))
	assert.False(t, item.CanReserve(6), "超过可售库存不能预留")
	assert.False(t, item.CanReserve(0), "数量必须为正")
	assert.False(t, item.CanReserve(-1))
}

func TestItem_TotalStock(t *testing.T) {
	item := Item{SKU: "item-001", AvailableQuantity: 98, ReservedQuantity: 2}
	assert.Equal(t, 100, item.TotalStock())
}

func TestReservationStatus_IsTerminal(t *testing.T) {
	assert.False(t, ReservationStatusReserved.IsTerminal())
	assert.False(t, ReservationStatusConfirmed.IsTerminal())
	assert.True(t, ReservationStatusReleased.IsTerminal())
	assert.True(t, ReservationStatusExpired.IsTerminal())
}

func TestReservation_Transitions(t *testing.T) {
	t.Run("RESERVED可确认可释放", func(t *testing.T) {
		r := Reservation{Status: ReservationStatusReserved}
		assert.True(t, r.CanConfirm())
		assert.True(t, r.CanRelease())
	})

	t.Run("CONFIRMED不可再确认但可释放", func(t *testing.T) {
		r := Reservation{Status: ReservationStatusConfirmed}
		assert.False(t, r.CanConfirm())
		assert.True(t, r.CanRelease())
	})

	t.Run("终态不可确认不可释放", func(t *testing.T) {
		for _, status := range []ReservationStatus{ReservationStatusReleased, ReservationStatusExpired} {
			r := Reservation{Status: status}
			assert.False(t, r.CanConfirm(), "终态%s不应可确认", status)
			assert.False(t, r.CanRelease(), "终态%s不应可释放", status)
		}
	})
}

func TestReservation_IsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	r := Reservation{Status: ReservationStatusReserved, ExpiresAt: now.Add(30 * time.Minute)}
	assert.False(t, r.IsExpired(now))
	assert.True(t, r.IsExpired(now.Add(31*time.Minute)))

	// 已确认的预留不参与超时回收
	confirmed := Reservation{Status: ReservationStatusConfirmed, ExpiresAt: now.Add(-time.Hour)}
	assert.False(t, confirmed.IsExpired(now))
}

func TestReservation_Validate(t *testing.T) {
	valid := Reservation{OrderID: "order-1", SKU: "item-001", Quantity: 2}
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, (&Reservation{SKU: "item-001", Quantity: 2}).Validate(), ErrInvalidOrderID)
	assert.ErrorIs(t, (&Reservation{OrderID: "order-1", Quantity: 2}).Validate(), ErrInvalidSKU)
	assert.ErrorIs(t, (&Reservation{OrderID: "order-1", SKU: "item-001"}).Validate(), ErrInvalidQuantity)
}
