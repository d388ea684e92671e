package domain

import "time"

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type EventItem struct {
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

type OrderCreated struct {
	OrderID     int64       `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	UserID      int64       `json:"userId"`
	Total       string      `json:"total"`
	Items       []EventItem `json:"items"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type OrderCancelled struct {
	OrderID     int64     `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	UserID      int64     `json:"userId"`
	Reason      string    `json:"reason"`
	CancelledAt time.Time `json:"cancelledAt"`
}

type OrderStatusChanged struct {
	OrderID     int64       `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	UserID      int64       `json:"userId"`
	From        OrderStatus `json:"from"`
	To          OrderStatus `json:"to"`
	ChangedAt   time.Time   `json:"changedAt"`
}

func NewOrderCreated(o Order) OrderCreated {
	items := make([]EventItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, EventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		})
	}
	return OrderCreated{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Total:       o.Total.StringFixed(2),
		Items:       items,
		CreatedAt:   o.CreatedAt,
	}
}
