package application

import (
	"github.com/caprisoft/storefront/internal/order/domain"
	"github.com/caprisoft/storefront/pkg/textutil"
	"github.com/caprisoft/storefront/pkg/validation"
)

// ValidationError names the request field that was rejected.
type ValidationError = validation.FieldError

type ItemRequest struct {
	ProductID int64 `json:"productId" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gt=0"`
}

type CreateOrderInput struct {
	UserID        int64
	Items         []ItemRequest        `json:"items" validate:"required,min=1,dive"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod" validate:"required,enum"`
	Delivery      domain.Delivery      `validate:"-"`
}

// deliveryInput mirrors the delivery fields as the customer submits them.
type deliveryInput struct {
	Name    string `json:"deliveryName" validate:"required,max=120"`
	Phone   string `json:"deliveryPhone" validate:"required,max=40"`
	Address string `json:"deliveryAddress" validate:"required,max=255"`
	City    string `json:"deliveryCity" validate:"required,max=120"`
	Notes   string `json:"notes" validate:"max=1000"`
}

type CancelOrderInput struct {
	RequesterID int64
	OrderID     int64
	Reason      string
}

// normalize strips markup from the delivery text and validates the request.
func (in *CreateOrderInput) normalize() error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	d := deliveryInput{
		Name:    textutil.Clean(in.Delivery.Name),
		Phone:   textutil.Clean(in.Delivery.Phone),
		Address: textutil.Clean(in.Delivery.Address),
		City:    textutil.Clean(in.Delivery.City),
		Notes:   textutil.Clean(in.Delivery.Notes),
	}
	if err := validation.Struct(d); err != nil {
		return err
	}
	in.Delivery = domain.Delivery(d)
	return nil
}
