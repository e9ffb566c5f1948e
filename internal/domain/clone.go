package domain

import "time"

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.DeliveryAddress != nil {
		addr := *o.DeliveryAddress
		addr.Latitude = cloneFloat(addr.Latitude)
		addr.Longitude = cloneFloat(addr.Longitude)
		c.DeliveryAddress = &addr
	}
	if o.ShopOrders != nil {
		c.ShopOrders = make([]ShopOrder, len(o.ShopOrders))
		for i := range o.ShopOrders {
			c.ShopOrders[i] = o.ShopOrders[i].Clone()
		}
	}
	return &c
}

func (so ShopOrder) Clone() ShopOrder {
	c := so
	if so.Items != nil {
		c.Items = append([]Item(nil), so.Items...)
	}
	c.AssignedAt = cloneTime(so.AssignedAt)
	c.OtpExpiresAt = cloneTime(so.OtpExpiresAt)
	c.DeliveredAt = cloneTime(so.DeliveredAt)
	if so.Receipt != nil {
		r := *so.Receipt
		r.Items = append([]Item(nil), so.Receipt.Items...)
		c.Receipt = &r
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
