package dto

import (
	"github.com/shopspring/decimal"

	"mealrun/internal/domain"
)

// PlaceOrderCommand is a validated cart handed to the placement use case.
type PlaceOrderCommand struct {
	CustomerEmail       string
	DeliveryAddress     *domain.Address
	PaymentMethod       domain.PaymentMethod
	SpecialInstructions string
	Lines               []CartLine
}

type CartLine struct {
	ShopID   string
	ItemID   string
	Name     string
	Price    decimal.Decimal
	Quantity int
}
