package domain

// Delivery is a shop order together with the parts of its parent order a
// courier needs to carry it out.
type Delivery struct {
	OrderID          string
	CustomerID       string
	DeliveryAddress  *Address
	PaymentMethod    PaymentMethod
	PaymentConfirmed bool
	ShopOrder        ShopOrder
}

func DeliveryFrom(o *Order, so *ShopOrder) Delivery {
	return Delivery{
		OrderID:          o.ID,
		CustomerID:       o.CustomerID,
		DeliveryAddress:  o.DeliveryAddress,
		PaymentMethod:    o.PaymentMethod,
		PaymentConfirmed: o.PaymentConfirmed,
		ShopOrder:        *so,
	}
}

// WithoutOtp hides the code from anyone but the customer.
func (d Delivery) WithoutOtp() Delivery {
	d.ShopOrder.DeliveryOtp = ""
	return d
}

// ShopOrderRef addresses one shop order inside its parent order.
type ShopOrderRef struct {
	OrderID     string
	ShopOrderID string
}
