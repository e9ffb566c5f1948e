package dto

import "mealrun/internal/domain"

type DeliveryResponse struct {
	OrderID          string            `json:"orderId"`
	CustomerID       string            `json:"customerId"`
	DeliveryAddress  *AddressDTO       `json:"deliveryAddress,omitempty"`
	PaymentMethod    string            `json:"paymentMethod"`
	PaymentConfirmed bool              `json:"paymentConfirmed"`
	ShopOrder        ShopOrderResponse `json:"shopOrder"`
}

type CourierResponse struct {
	ID         string `json:"id"`
	FullName   string `json:"fullName"`
	Mobile     string `json:"mobile,omitempty"`
	IsApproved bool   `json:"isApproved"`
	IsActive   bool   `json:"isActive"`
}

type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type DeliveryCountsResponse struct {
	Date   string      `json:"date"`
	Total  int         `json:"total"`
	Counts []HourCount `json:"counts"`
}

func NewDeliveryResponse(d domain.Delivery) DeliveryResponse {
	return DeliveryResponse{
		OrderID:          d.OrderID,
		CustomerID:       d.CustomerID,
		DeliveryAddress:  newAddressDTO(d.DeliveryAddress),
		PaymentMethod:    string(d.PaymentMethod),
		PaymentConfirmed: d.PaymentConfirmed,
		ShopOrder:        NewShopOrderResponse(d.ShopOrder),
	}
}

func NewDeliveryListResponse(ds []domain.Delivery) []DeliveryResponse {
	out := make([]DeliveryResponse, len(ds))
	for i, d := range ds {
		out[i] = NewDeliveryResponse(d)
	}
	return out
}

func NewCourierListResponse(cs []domain.Courier) []CourierResponse {
	out := make([]CourierResponse, len(cs))
	for i, c := range cs {
		out[i] = CourierResponse{ID: c.ID, FullName: c.FullName, Mobile: c.Mobile, IsApproved: c.IsApproved, IsActive: c.IsActive}
	}
	return out
}
