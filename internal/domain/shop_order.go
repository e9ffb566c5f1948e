package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is the price snapshot taken when the order was placed. It is never
// refreshed from the live menu.
type Item struct {
	ItemID   string
	Name     string
	Price    decimal.Decimal
	Quantity int
}

func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func ComputeSubtotal(items []Item) decimal.Decimal {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	return subtotal
}

type Receipt struct {
	Number   string
	IssuedAt time.Time
	Items    []Item
	Subtotal decimal.Decimal
}

type ShopOrder struct {
	ID                    string
	OrderID               string
	ShopID                string
	OwnerID               string
	Items                 []Item
	Subtotal              decimal.Decimal
	Status                ShopOrderStatus
	AssignedDeliveryBoyID string
	AssignedAt            *time.Time
	DeliveryOtp           string
	OtpExpiresAt          *time.Time
	DeliveredAt           *time.Time
	Receipt               *Receipt
	HiddenForOwner        bool
	HiddenForCourier      bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (so *ShopOrder) IsAssigned() bool {
	return so.AssignedDeliveryBoyID != ""
}

func (so *ShopOrder) HasOtp() bool {
	return so.DeliveryOtp != "" && so.OtpExpiresAt != nil
}

// HasLiveOtp reports an OTP that can still be verified at now.
func (so *ShopOrder) HasLiveOtp(now time.Time) bool {
	return so.HasOtp() && !now.After(*so.OtpExpiresAt)
}

func (so *ShopOrder) ClearOtp() {
	so.DeliveryOtp = ""
	so.OtpExpiresAt = nil
}

// IsOpenOffer is an out-for-delivery shop order no courier has taken yet.
func (so *ShopOrder) IsOpenOffer() bool {
	return so.Status == StatusOutOfDelivery && !so.IsAssigned()
}
