package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T, status OrderStatus) *Order {
	t.Helper()
	o, err := NewOrder("user-1", "", []OrderItem{
		{ID: "i1", CourseID: "c1", Price: 800},
		{ID: "i2", CourseID: "c2", Price: 2000},
	}, NewMoney(2800, "USD"), 3000, 0, 200)
	require.NoError(t, err)
	o.Status = status
	return o
}

func TestNewOrderInvariants(t *testing.T) {
	tests := []struct {
		name     string
		items    []OrderItem
		subTotal int64
		salesTax int64
		discount int64
		wantErr  bool
	}{
		{name: "valid", items: []OrderItem{{ID: "i", CourseID: "c", Price: 100}}, subTotal: 100},
		{name: "no items", items: nil, wantErr: true},
		{name: "negative discount", items: []OrderItem{{Price: 100}}, discount: -1, wantErr: true},
		{name: "negative sub_total", items: []OrderItem{{Price: 100}}, subTotal: -1, wantErr: true},
		{name: "negative sales_tax", items: []OrderItem{{Price: 100}}, salesTax: -1, wantErr: true},
		{name: "negative item price", items: []OrderItem{{Price: -5}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewOrder("u", "", tt.items, NewMoney(100, ""), tt.subTotal, tt.salesTax, tt.discount)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, EINVALID, ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusCreated, o.Status)
			assert.NotEmpty(t, o.ID)
			assert.Equal(t, "USD", o.Amount.Currency)
		})
	}
}

func TestOrderTransitionTable(t *testing.T) {
	all := []OrderStatus{
		StatusCreated, StatusPendingPayment, StatusProcessing, StatusSucceeded,
		StatusFailed, StatusCancelled, StatusRefunded, StatusExpired,
	}
	allowed := map[OrderStatus][]OrderStatus{
		StatusCreated:        {StatusPendingPayment, StatusCancelled, StatusExpired},
		StatusPendingPayment: {StatusProcessing, StatusCancelled, StatusFailed, StatusExpired},
		StatusProcessing:     {StatusSucceeded, StatusFailed, StatusCancelled},
		StatusSucceeded:      {StatusRefunded},
	}
	apply := func(o *Order, to OrderStatus) error {
		switch to {
		case StatusPendingPayment:
			return o.MarkPendingPayment()
		case StatusProcessing:
			return o.MarkProcessing()
		case StatusSucceeded:
			return o.MarkCompleted()
		case StatusFailed:
			return o.MarkFailed()
		case StatusCancelled:
			return o.MarkCancelled()
		case StatusRefunded:
			return o.MarkRefunded()
		case StatusExpired:
			return o.MarkExpired()
		}
		t.Fatalf("unknown target %s", to)
		return nil
	}

	for _, from := range all {
		for _, to := range all {
			if to == StatusCreated {
				continue // no explicit transition back to created except Reset
			}
			ok := false
			for _, a := range allowed[from] {
				if a == to {
					ok = true
				}
			}
			o := newTestOrder(t, from)
			before := o.UpdatedAt
			err := apply(o, to)
			if ok {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, o.Status)
				assert.False(t, o.UpdatedAt.Before(before))
			} else {
				var le *LifecycleError
				assert.ErrorAs(t, err, &le, "%s -> %s", from, to)
				assert.Equal(t, from, o.Status, "state must be unchanged on violation")
			}
		}
	}
}

func TestOrderMutationGuards(t *testing.T) {
	for _, status := range []OrderStatus{StatusSucceeded, StatusFailed, StatusCancelled, StatusRefunded, StatusExpired} {
		o := newTestOrder(t, status)
		assert.Error(t, o.AddItem(OrderItem{ID: "x", CourseID: "c9", Price: 1}), "add_item in %s", status)
		assert.Error(t, o.AddItems([]OrderItem{{ID: "x", CourseID: "c9", Price: 1}}), "add_items in %s", status)
		assert.Error(t, o.SetDiscount(10), "set_discount in %s", status)
		assert.Len(t, o.Items, 2)
	}

	o := newTestOrder(t, StatusPendingPayment)
	require.NoError(t, o.AddItem(OrderItem{ID: "i3", CourseID: "c3", Price: 500}))
	// 800 + 2000 + 500 - 200 discount
	assert.Equal(t, int64(3100), o.Amount.Amount)

	require.NoError(t, o.SetDiscount(5000))
	assert.Equal(t, int64(0), o.Amount.Amount, "total clamps at zero")
}

func TestSetPaymentDetailsGuards(t *testing.T) {
	pd := NewPaymentDetails("pd1", "pay1", "stripe", "po1", PaymentPending, testTime())

	o := newTestOrder(t, StatusSucceeded)
	assert.NoError(t, o.SetPaymentDetails(pd), "succeeded orders still accept detail updates")

	for _, status := range []OrderStatus{StatusFailed, StatusCancelled, StatusRefunded, StatusExpired} {
		o := newTestOrder(t, status)
		err := o.SetPaymentDetails(pd)
		var le *LifecycleError
		assert.ErrorAs(t, err, &le, "set_payment_details in %s", status)
	}
}

func TestReset(t *testing.T) {
	o := newTestOrder(t, StatusFailed)
	o.PaymentDetails = NewPaymentDetails("pd1", "pay1", "stripe", "po1", PaymentFailed, testTime())

	o.Reset()

	assert.Equal(t, StatusCreated, o.Status)
	assert.Nil(t, o.PaymentDetails)
	// Reset is an escape hatch: it works from any state, even succeeded.
	o2 := newTestOrder(t, StatusSucceeded)
	o2.Reset()
	assert.Equal(t, StatusCreated, o2.Status)
}
