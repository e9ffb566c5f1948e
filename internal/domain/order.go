package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentOnline PaymentMethod = "online"
)

type Address struct {
	Text      string
	Latitude  *float64
	Longitude *float64
}

type Order struct {
	ID                  string
	CustomerID          string
	CustomerEmail       string
	DeliveryAddress     *Address
	PaymentMethod       PaymentMethod
	PaymentConfirmed    bool
	IsCancelled         bool
	CancelReason        string
	SpecialInstructions string
	ShopOrders          []ShopOrder
	TotalAmount         decimal.Decimal
	HiddenForCustomer   bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasDeliveryAddress distinguishes delivery orders from pickup orders.
func (o *Order) HasDeliveryAddress() bool {
	return o.DeliveryAddress != nil && o.DeliveryAddress.Text != ""
}

func (o *Order) ShopOrderByShop(shopID string) (*ShopOrder, bool) {
	for i := range o.ShopOrders {
		if o.ShopOrders[i].ShopID == shopID {
			return &o.ShopOrders[i], true
		}
	}
	return nil, false
}

func (o *Order) ShopOrderByID(id string) (*ShopOrder, bool) {
	for i := range o.ShopOrders {
		if o.ShopOrders[i].ID == id {
			return &o.ShopOrders[i], true
		}
	}
	return nil, false
}

func (o *Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, so := range o.ShopOrders {
		total = total.Add(so.Subtotal)
	}
	return total
}

// CheckTotals verifies the order aggregates against the shop order snapshots.
func (o *Order) CheckTotals() error {
	if len(o.ShopOrders) == 0 {
		return fmt.Errorf("order %s has no shop orders", o.ID)
	}
	for _, so := range o.ShopOrders {
		if !so.Subtotal.Equal(ComputeSubtotal(so.Items)) {
			return fmt.Errorf("shop order %s subtotal %s does not match its items", so.ID, so.Subtotal)
		}
	}
	if !o.TotalAmount.Equal(o.ComputeTotal()) {
		return fmt.Errorf("order %s total %s does not match shop order subtotals", o.ID, o.TotalAmount)
	}
	return nil
}

func (o *Order) AllShopOrdersIn(status ShopOrderStatus) bool {
	for _, so := range o.ShopOrders {
		if so.Status != status {
			return false
		}
	}
	return true
}

// InstructionsEditable: the order is live and every shop order that has not
// been rejected is still in the kitchen.
func (o *Order) InstructionsEditable() bool {
	if o.IsCancelled {
		return false
	}
	live := 0
	for _, so := range o.ShopOrders {
		if so.Status == StatusRejected {
			continue
		}
		if !so.Status.IsEarly() {
			return false
		}
		live++
	}
	return live > 0
}

// OwnsShopOrder reports whether ownerID runs at least one shop in this order.
func (o *Order) OwnsShopOrder(ownerID string) bool {
	for _, so := range o.ShopOrders {
		if so.OwnerID == ownerID {
			return true
		}
	}
	return false
}

func (o *Order) AssignedTo(courierID string) bool {
	for _, so := range o.ShopOrders {
		if so.AssignedDeliveryBoyID == courierID {
			return true
		}
	}
	return false
}
