package dto

import "github.com/shopspring/decimal"

type PlaceOrderRequest struct {
	PaymentMethod       string            `json:"paymentMethod"`
	DeliveryAddress     *AddressDTO       `json:"deliveryAddress,omitempty"`
	SpecialInstructions string            `json:"specialInstructions"`
	CartItems           []CartItemRequest `json:"cartItems"`
}

type CartItemRequest struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Shop     string          `json:"shop"`
}

type AddressDTO struct {
	Text      string   `json:"text"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type DeliveryOtpRequest struct {
	OrderID     string `json:"orderId"`
	ShopOrderID string `json:"shopOrderId"`
}

type VerifyOtpRequest struct {
	OrderID     string `json:"orderId"`
	ShopOrderID string `json:"shopOrderId"`
	Otp         string `json:"otp"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type SpecialInstructionsRequest struct {
	SpecialInstructions string `json:"specialInstructions"`
}

type AvailabilityRequest struct {
	IsActive *bool `json:"isActive"`
}

type ApproveCourierRequest struct {
	Approve *bool `json:"approve"`
}
