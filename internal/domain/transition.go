package domain

// Edge is one legal status change for a shop order and the role that may drive it.
type Edge struct {
	From ShopOrderStatus
	To   ShopOrderStatus
	Role Role
	// DeliveryOnly edges require a delivery address on the order, PickupOnly
	// edges require its absence.
	DeliveryOnly bool
	PickupOnly   bool
	// RequiresOtp edges can only be taken through delivery OTP verification.
	RequiresOtp bool
}

var transitionTable = []Edge{
	{From: StatusPending, To: StatusConfirmed, Role: RoleOwner},
	{From: StatusPending, To: StatusRejected, Role: RoleOwner},
	{From: StatusPending, To: StatusPreparing, Role: RoleOwner},
	{From: StatusPending, To: StatusOutOfDelivery, Role: RoleOwner, DeliveryOnly: true},

	{From: StatusConfirmed, To: StatusPreparing, Role: RoleOwner},
	{From: StatusConfirmed, To: StatusOutOfDelivery, Role: RoleOwner, DeliveryOnly: true},
	{From: StatusConfirmed, To: StatusRejected, Role: RoleOwner},
	{From: StatusConfirmed, To: StatusDelivered, Role: RoleOwner, PickupOnly: true},

	{From: StatusPreparing, To: StatusOutOfDelivery, Role: RoleOwner, DeliveryOnly: true},
	{From: StatusPreparing, To: StatusRejected, Role: RoleOwner},
	{From: StatusPreparing, To: StatusDelivered, Role: RoleOwner, PickupOnly: true},

	{From: StatusOutOfDelivery, To: StatusDelivered, Role: RoleOwner, PickupOnly: true},
	{From: StatusOutOfDelivery, To: StatusDelivered, Role: RoleCourier, DeliveryOnly: true, RequiresOtp: true},
}

type Verdict int

const (
	VerdictAllowed Verdict = iota
	// VerdictUnreachable: no role may move from -> to for this kind of order.
	VerdictUnreachable
	// VerdictNotPermitted: the edge exists but belongs to another role.
	VerdictNotPermitted
	// VerdictOtpRequired: the edge belongs to the role but must go through OTP verification.
	VerdictOtpRequired
)

func (e Edge) appliesTo(hasAddress bool) bool {
	if e.DeliveryOnly && !hasAddress {
		return false
	}
	if e.PickupOnly && hasAddress {
		return false
	}
	return true
}

// CheckTransition is the single authority on whether role may move a shop
// order from one status to another.
func CheckTransition(role Role, from, to ShopOrderStatus, hasAddress bool) Verdict {
	found := false
	for _, e := range transitionTable {
		if e.From != from || e.To != to || !e.appliesTo(hasAddress) {
			continue
		}
		found = true
		if e.Role != role {
			continue
		}
		if e.RequiresOtp {
			return VerdictOtpRequired
		}
		return VerdictAllowed
	}
	if found {
		return VerdictNotPermitted
	}
	return VerdictUnreachable
}

// NextStatuses lists the targets role may set directly from the given status.
func NextStatuses(role Role, from ShopOrderStatus, hasAddress bool) []ShopOrderStatus {
	var out []ShopOrderStatus
	for _, e := range transitionTable {
		if e.From == from && e.Role == role && !e.RequiresOtp && e.appliesTo(hasAddress) {
			out = append(out, e.To)
		}
	}
	return out
}
