package dto

import (
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/service"
)

type ShippingAddressDTO struct {
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type CheckoutDTO struct {
	ShippingAddress ShippingAddressDTO `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	Notes           string             `json:"notes"`
}

// ToServiceRequest idempotency key 從 header 取得
func (d CheckoutDTO) ToServiceRequest(idempotencyKey string) service.CheckoutRequest {
	return service.CheckoutRequest{
		ShippingAddress: model.ShippingAddress{
			Recipient:  d.ShippingAddress.Recipient,
			Phone:      d.ShippingAddress.Phone,
			Line1:      d.ShippingAddress.Line1,
			Line2:      d.ShippingAddress.Line2,
			City:       d.ShippingAddress.City,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
		},
		PaymentMethod:  model.PaymentMethod(d.PaymentMethod),
		Notes:          d.Notes,
		IdempotencyKey: idempotencyKey,
	}
}

type CancelOrderDTO struct {
	Reason string `json:"reason"`
}

type UpdateOrderStatusDTO struct {
	Status   string `json:"status"`
	Note     string `json:"note"`
	Override bool   `json:"override"`
}

func (d UpdateOrderStatusDTO) ToServiceRequest() service.UpdateStatusRequest {
	return service.UpdateStatusRequest{
		Status:   model.OrderStatus(d.Status),
		Note:     d.Note,
		Override: d.Override,
	}
}
