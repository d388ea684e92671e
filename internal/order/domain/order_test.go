package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/caprisoft/storefront/internal/catalog/domain"
)

func product(id int64, price string) catalog.Product {
	p := catalog.NewProduct("Goat cheese", decimal.RequireFromString(price), 10, catalog.CategoryCheese, "kg")
	p.ID = id
	return p
}

func TestNewLineItemSnapshotsProduct(t *testing.T) {
	p := product(1, "10.00")
	item := NewLineItem(p, 3)

	p.Name = "Renamed"
	p.Price = decimal.RequireFromString("99.00")

	assert.Equal(t, "Goat cheese", item.ProductName)
	assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, item.Subtotal.Equal(decimal.RequireFromString("30.00")))
	assert.Equal(t, "kg", item.Unit)
}

func TestCalculateTotalIsFixedOnce(t *testing.T) {
	o := NewOrder(FirstOrderNumber, 1, PaymentCash, Delivery{})
	require.NoError(t, o.AddItem(NewLineItem(product(1, "10.00"), 3)))
	require.NoError(t, o.AddItem(NewLineItem(product(2, "2.55"), 2)))

	total := o.CalculateTotal()
	assert.Equal(t, "35.10", total.StringFixed(2))

	assert.ErrorIs(t, o.AddItem(NewLineItem(product(3, "1.00"), 1)), ErrItemsFixed)
	o.Items[0].Subtotal = decimal.Zero
	assert.Equal(t, "35.10", o.CalculateTotal().StringFixed(2))
}

func TestNewOrderStartsPending(t *testing.T) {
	o := NewOrder(FirstOrderNumber, 4, PaymentCard, Delivery{Name: "Ana"})
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, o.Total.IsZero())
	assert.True(t, o.OwnedBy(4))
	assert.False(t, o.OwnedBy(5))
}

func TestCancel(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, status := range []OrderStatus{StatusPending, StatusConfirmed} {
		o := NewOrder(FirstOrderNumber, 1, PaymentCash, Delivery{})
		o.Status = status
		require.NoError(t, o.Cancel("", now))
		assert.Equal(t, StatusCancelled, o.Status)
		assert.Equal(t, DefaultCancellationReason, o.CancellationReason)
		require.NotNil(t, o.CancelledAt)
		assert.Equal(t, now, *o.CancelledAt)
	}

	for _, status := range []OrderStatus{StatusPreparing, StatusShipped, StatusDelivered, StatusCancelled} {
		o := NewOrder(FirstOrderNumber, 1, PaymentCash, Delivery{})
		o.Status = status
		assert.ErrorIs(t, o.Cancel("changed my mind", now), ErrNotCancellable)
		assert.Equal(t, status, o.Status)
		assert.Nil(t, o.CancelledAt)
	}
}

func TestSetStatusIsUnrestricted(t *testing.T) {
	now := time.Now().UTC()
	o := NewOrder(FirstOrderNumber, 1, PaymentCash, Delivery{})

	o.SetStatus(StatusDelivered, now)
	require.NotNil(t, o.DeliveredAt)

	o.SetStatus(StatusPending, now)
	assert.Equal(t, StatusPending, o.Status)

	o.SetStatus(StatusCancelled, now)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Nil(t, o.CancelledAt)
}

func TestOrderNumbers(t *testing.T) {
	next, err := NextOrderNumber("")
	require.NoError(t, err)
	assert.Equal(t, "ORD-000001", next)

	next, err = NextOrderNumber("ORD-000041")
	require.NoError(t, err)
	assert.Equal(t, "ORD-000042", next)

	_, err = NextOrderNumber("INV-12")
	assert.Error(t, err)

	assert.Equal(t, "ORD-001000", FormatOrderNumber(1000))
	assert.Less(t, FormatOrderNumber(99), FormatOrderNumber(100))
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "Preparing", StatusPreparing.DisplayName())
	assert.False(t, OrderStatus("LOST").Valid())
	assert.True(t, PaymentTransfer.Valid())
	assert.Len(t, StatusLabels(), 6)
	assert.Equal(t, Label{Value: "CARD", DisplayName: "Card"}, PaymentMethodLabels()[2])
}

func TestNewOrderCreatedEvent(t *testing.T) {
	o := NewOrder("ORD-000007", 2, PaymentCash, Delivery{})
	o.ID = 11
	require.NoError(t, o.AddItem(NewLineItem(product(3, "4.5"), 2)))
	o.CalculateTotal()

	ev := NewOrderCreated(o)
	assert.Equal(t, "9.00", ev.Total)
	require.Len(t, ev.Items, 1)
	assert.Equal(t, "4.50", ev.Items[0].UnitPrice)
}
