package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	catalog "github.com/caprisoft/storefront/internal/catalog/domain"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED"
	StatusPreparing OrderStatus = "PREPARING"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentCard     PaymentMethod = "CARD"
)

const DefaultCancellationReason = "cancelled by user"

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrNotCancellable = errors.New("only pending or confirmed orders can be cancelled")
	ErrItemsFixed     = errors.New("order line items are fixed")
)

type Delivery struct {
	Name    string
	Phone   string
	Address string
	City    string
	Notes   string
}

// LineItem freezes the product name, price and unit at order time.
type LineItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	Subtotal    decimal.Decimal
	Unit        string
}

func NewLineItem(p catalog.Product, quantity int) LineItem {
	return LineItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitPrice:   p.Price,
		Quantity:    quantity,
		Subtotal:    p.Price.Mul(decimal.NewFromInt(int64(quantity))),
		Unit:        p.Unit,
	}
}

type Order struct {
	ID                 int64
	Number             string
	UserID             int64
	Items              []LineItem
	Status             OrderStatus
	PaymentMethod      PaymentMethod
	Delivery           Delivery
	Total              decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string

	totalFixed bool
}

func NewOrder(number string, userID int64, payment PaymentMethod, delivery Delivery) Order {
	now := time.Now().UTC()
	return Order{
		Number:        number,
		UserID:        userID,
		Status:        StatusPending,
		PaymentMethod: payment,
		Delivery:      delivery,
		Total:         decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddItem appends in submission order. Items cannot be added once the total
// has been calculated.
func (o *Order) AddItem(item LineItem) error {
	if o.totalFixed {
		return ErrItemsFixed
	}
	o.Items = append(o.Items, item)
	return nil
}

func (o *Order) CalculateTotal() decimal.Decimal {
	if o.totalFixed {
		return o.Total
	}
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal)
	}
	o.Total = total
	o.totalFixed = true
	return total
}

// Restore marks an order loaded from storage as having a fixed total.
func (o *Order) Restore() {
	o.totalFixed = true
}

func (o Order) OwnedBy(userID int64) bool {
	return o.UserID == userID
}

func (o Order) Cancellable() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

func (o *Order) Cancel(reason string, now time.Time) error {
	if !o.Cancellable() {
		return ErrNotCancellable
	}
	if reason == "" {
		reason = DefaultCancellationReason
	}
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.CancellationReason = reason
	o.UpdatedAt = now
	return nil
}

// SetStatus is the administrative override: any status may follow any other.
func (o *Order) SetStatus(status OrderStatus, now time.Time) {
	o.Status = status
	if status == StatusDelivered {
		o.DeliveredAt = &now
	}
	o.UpdatedAt = now
}
