package http

import (
	"time"

	"github.com/caprisoft/storefront/internal/order/application"
	"github.com/caprisoft/storefront/internal/order/domain"
)

type itemReq struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type createOrderReq struct {
	Items           []itemReq `json:"items"`
	PaymentMethod   string    `json:"paymentMethod"`
	DeliveryName    string    `json:"deliveryName"`
	DeliveryPhone   string    `json:"deliveryPhone"`
	DeliveryAddress string    `json:"deliveryAddress"`
	DeliveryCity    string    `json:"deliveryCity"`
	Notes           string    `json:"notes"`
}

func (r createOrderReq) input(userID int64) application.CreateOrderInput {
	items := make([]application.ItemRequest, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, application.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return application.CreateOrderInput{
		UserID:        userID,
		Items:         items,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		Delivery: domain.Delivery{
			Name:    r.DeliveryName,
			Phone:   r.DeliveryPhone,
			Address: r.DeliveryAddress,
			City:    r.DeliveryCity,
			Notes:   r.Notes,
		},
	}
}

type cancelReq struct {
	Reason string `json:"reason"`
}

type statusReq struct {
	Status string `json:"status"`
}

type itemResp struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	UnitPrice   string `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	Subtotal    string `json:"subtotal"`
	Unit        string `json:"unit"`
}

type orderResp struct {
	ID                       int64      `json:"id"`
	OrderNumber              string     `json:"orderNumber"`
	UserID                   int64      `json:"userId"`
	Items                    []itemResp `json:"items"`
	Status                   string     `json:"status"`
	StatusDisplayName        string     `json:"statusDisplayName"`
	PaymentMethod            string     `json:"paymentMethod"`
	PaymentMethodDisplayName string     `json:"paymentMethodDisplayName"`
	DeliveryName             string     `json:"deliveryName"`
	DeliveryPhone            string     `json:"deliveryPhone"`
	DeliveryAddress          string     `json:"deliveryAddress"`
	DeliveryCity             string     `json:"deliveryCity"`
	Notes                    string     `json:"notes,omitempty"`
	TotalAmount              string     `json:"totalAmount"`
	CreatedAt                time.Time  `json:"createdAt"`
	UpdatedAt                time.Time  `json:"updatedAt"`
	DeliveredAt              *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt              *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason       string     `json:"cancellationReason,omitempty"`
}

func toResp(o domain.Order) orderResp {
	items := make([]itemResp, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemResp{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice.StringFixed(2),
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal.StringFixed(2),
			Unit:        it.Unit,
		})
	}
	return orderResp{
		ID:                       o.ID,
		OrderNumber:              o.Number,
		UserID:                   o.UserID,
		Items:                    items,
		Status:                   string(o.Status),
		StatusDisplayName:        o.Status.DisplayName(),
		PaymentMethod:            string(o.PaymentMethod),
		PaymentMethodDisplayName: o.PaymentMethod.DisplayName(),
		DeliveryName:             o.Delivery.Name,
		DeliveryPhone:            o.Delivery.Phone,
		DeliveryAddress:          o.Delivery.Address,
		DeliveryCity:             o.Delivery.City,
		Notes:                    o.Delivery.Notes,
		TotalAmount:              o.Total.StringFixed(2),
		CreatedAt:                o.CreatedAt,
		UpdatedAt:                o.UpdatedAt,
		DeliveredAt:              o.DeliveredAt,
		CancelledAt:              o.CancelledAt,
		CancellationReason:       o.CancellationReason,
	}
}

func toResps(orders []domain.Order) []orderResp {
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResp(o))
	}
	return out
}

type statsResp struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}
