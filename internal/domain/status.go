package domain

type ShopOrderStatus string

const (
	StatusPending       ShopOrderStatus = "pending"
	StatusConfirmed     ShopOrderStatus = "confirmed"
	StatusPreparing     ShopOrderStatus = "preparing"
	StatusOutOfDelivery ShopOrderStatus = "out of delivery"
	StatusDelivered     ShopOrderStatus = "delivered"
	StatusRejected      ShopOrderStatus = "rejected"
	StatusCancelled     ShopOrderStatus = "cancelled"
)

var allStatuses = []ShopOrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusOutOfDelivery,
	StatusDelivered,
	StatusRejected,
	StatusCancelled,
}

// ParseShopOrderStatus accepts only the closed set of statuses above.
func ParseShopOrderStatus(s string) (ShopOrderStatus, bool) {
	for _, st := range allStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s ShopOrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusRejected || s == StatusCancelled
}

// IsEarly reports whether the kitchen has not yet handed the food off.
func (s ShopOrderStatus) IsEarly() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusPreparing
}
