package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"mealrun/internal/domain"
)

type OrderResponse struct {
	ID                  string              `json:"id"`
	CustomerID          string              `json:"customerId"`
	DeliveryAddress     *AddressDTO         `json:"deliveryAddress,omitempty"`
	PaymentMethod       string              `json:"paymentMethod"`
	PaymentConfirmed    bool                `json:"paymentConfirmed"`
	IsCancelled         bool                `json:"isCancelled"`
	CancelReason        string              `json:"cancelReason,omitempty"`
	SpecialInstructions string              `json:"specialInstructions"`
	TotalAmount         decimal.Decimal     `json:"totalAmount"`
	ShopOrders          []ShopOrderResponse `json:"shopOrders"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

type ShopOrderResponse struct {
	ID                    string           `json:"id"`
	ShopID                string           `json:"shopId"`
	OwnerID               string           `json:"ownerId"`
	Status                string           `json:"status"`
	Items                 []ItemResponse   `json:"items"`
	Subtotal              decimal.Decimal  `json:"subtotal"`
	AssignedDeliveryBoyID string           `json:"assignedDeliveryBoyId,omitempty"`
	AssignedAt            *time.Time       `json:"assignedAt,omitempty"`
	DeliveryOtp           string           `json:"deliveryOtp,omitempty"`
	OtpExpiresAt          *time.Time       `json:"otpExpiresAt,omitempty"`
	DeliveredAt           *time.Time       `json:"deliveredAt,omitempty"`
	Receipt               *ReceiptResponse `json:"receipt,omitempty"`
}

type ItemResponse struct {
	ItemID   string          `json:"itemId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type ReceiptResponse struct {
	Number   string          `json:"number"`
	IssuedAt time.Time       `json:"issuedAt"`
	Items    []ItemResponse  `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type OtpResponse struct {
	OrderID     string    `json:"orderId"`
	ShopOrderID string    `json:"shopOrderId"`
	Otp         string    `json:"otp,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
	IsExisting  bool      `json:"isExisting"`
}

type StatusUpdateResponse struct {
	OrderID   string            `json:"orderId"`
	ShopOrder ShopOrderResponse `json:"shopOrder"`
	Changed   bool              `json:"changed"`
}

func NewOrderResponse(o *domain.Order) OrderResponse {
	shopOrders := make([]ShopOrderResponse, len(o.ShopOrders))
	for i := range o.ShopOrders {
		shopOrders[i] = NewShopOrderResponse(o.ShopOrders[i])
	}
	return OrderResponse{
		ID:                  o.ID,
		CustomerID:          o.CustomerID,
		DeliveryAddress:     newAddressDTO(o.DeliveryAddress),
		PaymentMethod:       string(o.PaymentMethod),
		PaymentConfirmed:    o.PaymentConfirmed,
		IsCancelled:         o.IsCancelled,
		CancelReason:        o.CancelReason,
		SpecialInstructions: o.SpecialInstructions,
		TotalAmount:         o.TotalAmount,
		ShopOrders:          shopOrders,
		CreatedAt:           o.CreatedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

func NewOrderListResponse(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = NewOrderResponse(o)
	}
	return out
}

func NewShopOrderResponse(so domain.ShopOrder) ShopOrderResponse {
	resp := ShopOrderResponse{
		ID:                    so.ID,
		ShopID:                so.ShopID,
		OwnerID:               so.OwnerID,
		Status:                string(so.Status),
		Items:                 newItemResponses(so.Items),
		Subtotal:              so.Subtotal,
		AssignedDeliveryBoyID: so.AssignedDeliveryBoyID,
		AssignedAt:            so.AssignedAt,
		DeliveryOtp:           so.DeliveryOtp,
		OtpExpiresAt:          so.OtpExpiresAt,
		DeliveredAt:           so.DeliveredAt,
	}
	if so.Receipt != nil {
		resp.Receipt = &ReceiptResponse{
			Number:   so.Receipt.Number,
			IssuedAt: so.Receipt.IssuedAt,
			Items:    newItemResponses(so.Receipt.Items),
			Subtotal: so.Receipt.Subtotal,
		}
	}
	return resp
}

func newItemResponses(items []domain.Item) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i, it := range items {
		out[i] = ItemResponse{ItemID: it.ItemID, Name: it.Name, Price: it.Price, Quantity: it.Quantity}
	}
	return out
}

func newAddressDTO(a *domain.Address) *AddressDTO {
	if a == nil {
		return nil
	}
	return &AddressDTO{Text: a.Text, Latitude: a.Latitude, Longitude: a.Longitude}
}
