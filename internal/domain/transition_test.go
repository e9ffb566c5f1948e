package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckTransition_OwnerEdges(t *testing.T) {
	tests := []struct {
		name       string
		from       ShopOrderStatus
		to         ShopOrderStatus
		hasAddress bool
		want       Verdict
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true, VerdictAllowed},
		{"pending to rejected", StatusPending, StatusRejected, false, VerdictAllowed},
		{"pending to preparing", StatusPending, StatusPreparing, true, VerdictAllowed},
		{"pending to out of delivery with address", StatusPending, StatusOutOfDelivery, true, VerdictAllowed},
		{"pending to out of delivery for pickup", StatusPending, StatusOutOfDelivery, false, VerdictUnreachable},
		{"pending to delivered", StatusPending, StatusDelivered, false, VerdictUnreachable},
		{"confirmed to preparing", StatusConfirmed, StatusPreparing, true, VerdictAllowed},
		{"confirmed to delivered for pickup", StatusConfirmed, StatusDelivered, false, VerdictAllowed},
		{"confirmed to delivered with address", StatusConfirmed, StatusDelivered, true, VerdictUnreachable},
		{"preparing to delivered for pickup", StatusPreparing, StatusDelivered, false, VerdictAllowed},
		{"preparing back to pending", StatusPreparing, StatusPending, true, VerdictUnreachable},
		{"preparing to confirmed", StatusPreparing, StatusConfirmed, true, VerdictUnreachable},
		{"out of delivery to delivered with address", StatusOutOfDelivery, StatusDelivered, true, VerdictNotPermitted},
		{"out of delivery to rejected", StatusOutOfDelivery, StatusRejected, true, VerdictUnreachable},
		{"delivered is terminal", StatusDelivered, StatusPreparing, true, VerdictUnreachable},
		{"rejected is terminal", StatusRejected, StatusConfirmed, true, VerdictUnreachable},
		{"cancelled is terminal", StatusCancelled, StatusConfirmed, true, VerdictUnreachable},
		{"cancel is not a status edge", StatusPending, StatusCancelled, true, VerdictUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckTransition(RoleOwner, tt.from, tt.to, tt.hasAddress))
		})
	}
}

func TestCheckTransition_CourierNeedsOtp(t *testing.T) {
	assert.Equal(t, VerdictOtpRequired, CheckTransition(RoleCourier, StatusOutOfDelivery, StatusDelivered, true))
	assert.Equal(t, VerdictNotPermitted, CheckTransition(RoleCourier, StatusPending, StatusConfirmed, true))
}

func TestCheckTransition_CustomerDrivesNothing(t *testing.T) {
	assert.Equal(t, VerdictNotPermitted, CheckTransition(RoleUser, StatusPending, StatusConfirmed, true))
	assert.Equal(t, VerdictUnreachable, CheckTransition(RoleUser, StatusPending, StatusCancelled, true))
}

func TestNextStatuses(t *testing.T) {
	assert.ElementsMatch(t,
		[]ShopOrderStatus{StatusConfirmed, StatusRejected, StatusPreparing, StatusOutOfDelivery},
		NextStatuses(RoleOwner, StatusPending, true),
	)
	assert.ElementsMatch(t,
		[]ShopOrderStatus{StatusPreparing, StatusRejected, StatusDelivered},
		NextStatuses(RoleOwner, StatusConfirmed, false),
	)
	assert.Empty(t, NextStatuses(RoleCourier, StatusOutOfDelivery, true))
	assert.Empty(t, NextStatuses(RoleOwner, StatusDelivered, true))
}

func TestParseShopOrderStatus(t *testing.T) {
	st, ok := ParseShopOrderStatus("out of delivery")
	assert.True(t, ok)
	assert.Equal(t, StatusOutOfDelivery, st)

	_, ok = ParseShopOrderStatus("OUT_FOR_DELIVERY")
	assert.False(t, ok)
}

func TestShopOrderStatus_Classes(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusOutOfDelivery.IsTerminal())

	assert.True(t, StatusPreparing.IsEarly())
	assert.False(t, StatusOutOfDelivery.IsEarly())
}
