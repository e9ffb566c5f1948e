package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mealrun/internal/domain"
	apperrors "mealrun/internal/errors"
	"mealrun/internal/notify"
	"mealrun/internal/order/repository"
)

// Test doubles

type fixedOtp struct {
	codes []string
	next  int
}

func (f *fixedOtp) Generate() (string, error) {
	code := f.codes[f.next%len(f.codes)]
	f.next++
	return code, nil
}

type mockOfferOpener struct {
	mu     sync.Mutex
	opened []domain.Delivery
	err    error
}

func (m *mockOfferOpener) OpenOffer(_ context.Context, d domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, d)
	return m.err
}

type mockNotifier struct {
	sent []string
}

func (m *mockNotifier) SendDeliveryOtp(_ context.Context, _, _, otp string, _ time.Time) error {
	m.sent = append(m.sent, otp)
	return nil
}

type mockPublisher struct {
	events []notify.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e notify.Event) error {
	m.events = append(m.events, e)
	return m.err
}

func (m *mockPublisher) types() []notify.EventType {
	out := make([]notify.EventType, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	svc       *LifecycleService
	store     *repository.MemoryStore
	offers    *mockOfferOpener
	notifier  *mockNotifier
	publisher *mockPublisher
	clock     *testClock
}

var (
	customer = domain.Actor{ID: "cust-1", Role: domain.RoleUser}
	stranger = domain.Actor{ID: "cust-2", Role: domain.RoleUser}
	ownerA   = domain.Actor{ID: "owner-a", Role: domain.RoleOwner}
	ownerB   = domain.Actor{ID: "owner-b", Role: domain.RoleOwner}
	courier1 = domain.Actor{ID: "c1", Role: domain.RoleCourier}
	courier2 = domain.Actor{ID: "c2", Role: domain.RoleCourier}
	admin    = domain.Actor{ID: "root", Role: domain.RoleSuperAdmin}
)

func newTestEnv(t *testing.T, codes ...string) *testEnv {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"4821", "7390", "1564"}
	}
	env := &testEnv{
		store:     repository.NewMemoryStore(),
		offers:    &mockOfferOpener{},
		notifier:  &mockNotifier{},
		publisher: &mockPublisher{},
		clock:     &testClock{t: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)},
	}
	env.svc = NewLifecycleService(
		env.store,
		env.offers,
		&fixedOtp{codes: codes},
		env.notifier,
		env.publisher,
		LifecycleConfig{OtpTTL: 30 * time.Minute, TxTimeout: 5 * time.Second},
		zap.NewNop(),
	)
	env.svc.now = env.clock.now
	env.store.PutCourier(domain.Courier{ID: "c1", FullName: "Ravi", IsApproved: true, IsActive: true})
	env.store.PutCourier(domain.Courier{ID: "c2", FullName: "Meena", IsApproved: true, IsActive: true})
	return env
}

// placeOrder stores an order with two shop orders, subtotals 100 and 150.
func (e *testEnv) placeOrder(t *testing.T, id string, withAddress bool) *domain.Order {
	t.Helper()
	itemsA := []domain.Item{
		{ItemID: "i1", Name: "Masala Dosa", Price: decimal.NewFromInt(40), Quantity: 2},
		{ItemID: "i2", Name: "Filter Coffee", Price: decimal.NewFromInt(20), Quantity: 1},
	}
	itemsB := []domain.Item{{ItemID: "i3", Name: "Chicken Biryani", Price: decimal.NewFromInt(150), Quantity: 1}}
	o := &domain.Order{
		ID:            id,
		CustomerID:    customer.ID,
		CustomerEmail: "asha@example.com",
		PaymentMethod: domain.PaymentCOD,
		CreatedAt:     e.clock.t,
		UpdatedAt:     e.clock.t,
		ShopOrders: []domain.ShopOrder{
			{ID: id + "-so1", OrderID: id, ShopID: "shop-a", OwnerID: ownerA.ID, Items: itemsA, Subtotal: domain.ComputeSubtotal(itemsA), Status: domain.StatusPending},
			{ID: id + "-so2", OrderID: id, ShopID: "shop-b", OwnerID: ownerB.ID, Items: itemsB, Subtotal: domain.ComputeSubtotal(itemsB), Status: domain.StatusPending},
		},
	}
	if withAddress {
		o.DeliveryAddress = &domain.Address{Text: "12 MG Road, Bengaluru"}
	}
	o.TotalAmount = o.ComputeTotal()
	require.NoError(t, e.store.Insert(context.Background(), o))
	return o
}

func (e *testEnv) transition(t *testing.T, actor domain.Actor, orderID, shopID string, to domain.ShopOrderStatus) *TransitionResult {
	t.Helper()
	res, err := e.svc.ApplyStatusTransition(context.Background(), actor, orderID, shopID, to)
	require.NoError(t, err)
	return res
}

func (e *testEnv) shopOrder(t *testing.T, orderID, shopOrderID string) domain.ShopOrder {
	t.Helper()
	o, err := e.store.FindByID(context.Background(), orderID)
	require.NoError(t, err)
	require.NoError(t, o.CheckTotals())
	so, ok := o.ShopOrderByID(shopOrderID)
	require.True(t, ok)
	return *so
}

// dispatch brings o's first shop order out for delivery and assigns courier1.
func (e *testEnv) dispatch(t *testing.T, orderID string) domain.ShopOrder {
	t.Helper()
	e.transition(t, ownerA, orderID, "shop-a", domain.StatusOutOfDelivery)
	require.NoError(t, e.store.AssignCourier(context.Background(), orderID+"-so1", courier1.ID, e.clock.t))
	return e.shopOrder(t, orderID, orderID+"-so1")
}

// Scenarios

func TestLifecycle_DeliveryScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	order := env.placeOrder(t, "o1", true)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(250)))

	env.transition(t, ownerA, "o1", "shop-a", domain.StatusConfirmed)
	env.transition(t, ownerB, "o1", "shop-b", domain.StatusRejected)

	got, err := env.store.FindByID(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, got.IsCancelled, "a rejected shop order does not cancel the order")
	assert.Equal(t, domain.StatusConfirmed, got.ShopOrders[0].Status)
	assert.Equal(t, domain.StatusRejected, got.ShopOrders[1].Status)

	res := env.transition(t, ownerA, "o1", "shop-a", domain.StatusOutOfDelivery)
	so := res.ShopOrder
	assert.Equal(t, domain.StatusOutOfDelivery, so.Status)
	assert.Len(t, so.DeliveryOtp, 4)
	require.NotNil(t, so.OtpExpiresAt)
	assert.Equal(t, env.clock.t.Add(30*time.Minute), *so.OtpExpiresAt)
	require.Len(t, env.offers.opened, 1)
	assert.Equal(t, "o1-so1", env.offers.opened[0].ShopOrder.ID)
	assert.Equal(t, []string{"4821"}, env.notifier.sent)

	require.NoError(t, env.store.AssignCourier(ctx, "o1-so1", courier1.ID, env.clock.t))
	assert.Equal(t, courier1.ID, env.shopOrder(t, "o1", "o1-so1").AssignedDeliveryBoyID)

	env.clock.advance(10 * time.Minute)
	delivered, err := env.svc.VerifyDeliveryOtp(ctx, courier1, "o1", "o1-so1", so.DeliveryOtp)
	require.NoError(t, err)
	assert.True(t, delivered.Changed)

	final := env.shopOrder(t, "o1", "o1-so1")
	assert.Equal(t, domain.StatusDelivered, final.Status)
	assert.Empty(t, final.DeliveryOtp)
	assert.Nil(t, final.OtpExpiresAt)
	require.NotNil(t, final.DeliveredAt)
	assert.Equal(t, env.clock.t, *final.DeliveredAt)
	require.NotNil(t, final.Receipt)
	assert.True(t, final.Receipt.Subtotal.Equal(decimal.NewFromInt(100)))
	assert.Len(t, final.Receipt.Items, 2)
	assert.NotEmpty(t, final.Receipt.Number)

	assert.Equal(t, []notify.EventType{
		notify.EventStatusChanged,
		notify.EventStatusChanged,
		notify.EventStatusChanged,
		notify.EventStatusChanged,
	}, env.publisher.types())
}

func TestLifecycle_PickupScenario(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", false)

	env.transition(t, ownerA, "o1", "shop-a", domain.StatusPreparing)

	_, err := env.svc.ApplyStatusTransition(context.Background(), ownerA, "o1", "shop-a", domain.StatusOutOfDelivery)
	_, isInvalid := apperrors.IsInvalidTransitionError(err)
	assert.True(t, isInvalid, "pickup orders never go out for delivery")

	res := env.transition(t, ownerA, "o1", "shop-a", domain.StatusDelivered)
	assert.True(t, res.Changed)

	so := env.shopOrder(t, "o1", "o1-so1")
	assert.Equal(t, domain.StatusDelivered, so.Status)
	assert.Empty(t, so.DeliveryOtp)
	assert.Nil(t, so.OtpExpiresAt)
	assert.NotNil(t, so.Receipt)
	assert.Empty(t, env.notifier.sent)
	assert.Empty(t, env.offers.opened)
}

// applyStatusTransition

func TestApplyStatusTransition_IdempotentRetry(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)

	first := env.transition(t, ownerA, "o1", "shop-a", domain.StatusConfirmed)
	second := env.transition(t, ownerA, "o1", "shop-a", domain.StatusConfirmed)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, domain.StatusConfirmed, second.ShopOrder.Status)
	assert.Len(t, env.publisher.events, 1)
}

func TestApplyStatusTransition_IdempotentOutForDeliveryKeepsOtp(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)

	first := env.transition(t, ownerA, "o1", "shop-a", domain.StatusOutOfDelivery)
	second := env.transition(t, ownerA, "o1", "shop-a", domain.StatusOutOfDelivery)

	assert.Equal(t, first.ShopOrder.DeliveryOtp, second.ShopOrder.DeliveryOtp)
	assert.Len(t, env.offers.opened, 1)
}

func TestApplyStatusTransition_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)

	_, err := env.svc.ApplyStatusTransition(context.Background(), ownerA, "missing", "shop-a", domain.StatusConfirmed)
	_, isNotFound := apperrors.IsNotFoundError(err)
	assert.True(t, isNotFound)

	_, err = env.svc.ApplyStatusTransition(context.Background(), ownerA, "o1", "shop-z", domain.StatusConfirmed)
	_, isNotFound = apperrors.IsNotFoundError(err)
	assert.True(t, isNotFound)
}

func TestApplyStatusTransition_Forbidden(t *testing.T) {
	tests := []struct {
		name   string
		actor  domain.Actor
		shopID string
		target domain.ShopOrderStatus
	}{
		{"other shop's owner", ownerB, "shop-a", domain.StatusConfirmed},
		{"customer sets confirmed", customer, "shop-a", domain.StatusConfirmed},
		{"foreign customer", stranger, "shop-a", domain.StatusConfirmed},
		{"unassigned courier", courier1, "shop-a", domain.StatusConfirmed},
		{"superadmin", admin, "shop-a", domain.StatusConfirmed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.placeOrder(t, "o1", true)

			_, err := env.svc.ApplyStatusTransition(context.Background(), tt.actor, "o1", tt.shopID, tt.target)

			_, isForbidden := apperrors.IsForbiddenError(err)
			assert.True(t, isForbidden, "got %v", err)
			assert.Equal(t, domain.StatusPending, env.shopOrder(t, "o1", "o1-so1").Status)
		})
	}
}

func TestApplyStatusTransition_OffTableLeavesStateUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		address bool
		path    []domain.ShopOrderStatus
		target  domain.ShopOrderStatus
	}{
		{"pending to delivered on a delivery order", true, nil, domain.StatusDelivered},
		{"back from preparing to confirmed", true, []domain.ShopOrderStatus{domain.StatusPreparing}, domain.StatusConfirmed},
		{"rejected is terminal", true, []domain.ShopOrderStatus{domain.StatusRejected}, domain.StatusConfirmed},
		{"pending to cancelled", true, nil, domain.StatusCancelled},
		{"pickup out of delivery", false, []domain.ShopOrderStatus{domain.StatusConfirmed}, domain.StatusOutOfDelivery},
		{"unknown status", true, nil, domain.ShopOrderStatus("teleported")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.placeOrder(t, "o1", tt.address)
			for _, step := range tt.path {
				env.transition(t, ownerA, "o1", "shop-a", step)
			}
			before := env.shopOrder(t, "o1", "o1-so1")

			_, err := env.svc.ApplyStatusTransition(context.Background(), ownerA, "o1", "shop-a", tt.target)

			_, isInvalid := apperrors.IsInvalidTransitionError(err)
			assert.True(t, isInvalid, "got %v", err)
			assert.Equal(t, before, env.shopOrder(t, "o1", "o1-so1"))
		})
	}
}

func TestApplyStatusTransition_OwnerCannotDeliverWithAddress(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	env.transition(t, ownerA, "o1", "shop-a", domain.StatusOutOfDelivery)

	_, err := env.svc.ApplyStatusTransition(context.Background(), ownerA, "o1", "shop-a", domain.StatusDelivered)

	_, isForbidden := apperrors.IsForbiddenError(err)
	assert.True(t, isForbidden)
}

func TestApplyStatusTransition_CourierMustUseOtp(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	env.dispatch(t, "o1")

	_, err := env.svc.ApplyStatusTransition(context.Background(), courier1, "o1", "shop-a", domain.StatusDelivered)

	ite, isInvalid := apperrors.IsInvalidTransitionError(err)
	require.True(t, isInvalid)
	assert.Equal(t, string(domain.StatusOutOfDelivery), ite.From)
	assert.Equal(t, domain.StatusOutOfDelivery, env.shopOrder(t, "o1", "o1-so1").Status)
}

type staleStore struct {
	*repository.MemoryStore
}

func (s staleStore) UpdateShopOrder(_ context.Context, prev, next *domain.ShopOrder) error {
	return apperrors.NewInvalidTransitionError("shop order was modified concurrently", string(prev.Status), string(next.Status))
}

func TestApplyStatusTransition_StaleReadSurfacesInvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	env.svc.orders = staleStore{env.store}

	_, err := env.svc.ApplyStatusTransition(context.Background(), ownerA, "o1", "shop-a", domain.StatusConfirmed)

	_, isInvalid := apperrors.IsInvalidTransitionError(err)
	assert.True(t, isInvalid)
	assert.Empty(t, env.publisher.events)
}

func TestApplyStatusTransition_SideEffectFailuresDoNotFail(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	env.publisher.err = errors.New("broker down")
	env.offers.err = errors.New("matcher down")

	res, err := env.svc.ApplyStatusTransition(context.Background(), ownerA, "o1", "shop-a", domain.StatusOutOfDelivery)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusOutOfDelivery, res.ShopOrder.Status)
}

// Delivery OTP

func TestGenerateDeliveryOtp_ReturnsLiveCodeUnchanged(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	so := env.dispatch(t, "o1")

	res, err := env.svc.GenerateDeliveryOtp(context.Background(), customer, "o1", "o1-so1")
	require.NoError(t, err)
	assert.True(t, res.IsExisting)
	assert.Equal(t, so.DeliveryOtp, res.Otp)
	assert.Equal(t, *so.OtpExpiresAt, res.ExpiresAt)

	again, err := env.svc.GenerateDeliveryOtp(context.Background(), customer, "o1", "o1-so1")
	require.NoError(t, err)
	assert.Equal(t, res.Otp, again.Otp)
	assert.Equal(t, []string{"4821"}, env.notifier.sent, "existing codes are not resent to the customer")
}

func TestGenerateDeliveryOtp_RotatesExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	old := env.dispatch(t, "o1")

	env.clock.advance(31 * time.Minute)
	res, err := env.svc.GenerateDeliveryOtp(context.Background(), customer, "o1", "o1-so1")

	require.NoError(t, err)
	assert.False(t, res.IsExisting)
	assert.NotEqual(t, old.DeliveryOtp, res.Otp)
	assert.Equal(t, env.clock.t.Add(30*time.Minute), res.ExpiresAt)
	assert.Equal(t, res.Otp, env.shopOrder(t, "o1", "o1-so1").DeliveryOtp)
}

func TestGenerateDeliveryOtp_CourierTriggersSendButSeesNoCode(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	env.dispatch(t, "o1")

	res, err := env.svc.GenerateDeliveryOtp(context.Background(), courier1, "o1", "o1-so1")

	require.NoError(t, err)
	assert.Empty(t, res.Otp)
	assert.True(t, res.IsExisting)
	assert.Equal(t, []string{"4821", "4821"}, env.notifier.sent)
}

func TestGenerateDeliveryOtp_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	env.placeOrder(t, "o2", false)
	env.dispatch(t, "o1")

	_, err := env.svc.GenerateDeliveryOtp(context.Background(), stranger, "o1", "o1-so1")
	_, isForbidden := apperrors.IsForbiddenError(err)
	assert.True(t, isForbidden)

	_, err = env.svc.GenerateDeliveryOtp(context.Background(), courier2, "o1", "o1-so1")
	_, isForbidden = apperrors.IsForbiddenError(err)
	assert.True(t, isForbidden)

	_, err = env.svc.GenerateDeliveryOtp(context.Background(), customer, "o1", "o1-so2")
	_, isInvalidState := apperrors.IsInvalidStateError(err)
	assert.True(t, isInvalidState, "pending shop order")

	_, err = env.svc.GenerateDeliveryOtp(context.Background(), customer, "o2", "o2-so1")
	_, isInvalidState = apperrors.IsInvalidStateError(err)
	assert.True(t, isInvalidState, "pickup order")

	_, err = env.svc.GenerateDeliveryOtp(context.Background(), customer, "o1", "nope")
	_, isNotFound := apperrors.IsNotFoundError(err)
	assert.True(t, isNotFound)
}

func TestVerifyDeliveryOtp_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	so := env.dispatch(t, "o1")
	ctx := context.Background()

	_, err := env.svc.VerifyDeliveryOtp(ctx, courier2, "o1", "o1-so1", so.DeliveryOtp)
	_, isForbidden := apperrors.IsForbiddenError(err)
	assert.True(t, isForbidden, "not the assigned courier")

	_, err = env.svc.VerifyDeliveryOtp(ctx, customer, "o1", "o1-so1", so.DeliveryOtp)
	_, isForbidden = apperrors.IsForbiddenError(err)
	assert.True(t, isForbidden, "customers hand the code over, they do not submit it")

	_, err = env.svc.VerifyDeliveryOtp(ctx, courier1, "o1", "o1-so1", "0000")
	oe, isInvalidOtp := apperrors.IsInvalidOtpError(err)
	require.True(t, isInvalidOtp)
	assert.Equal(t, apperrors.OtpMismatch, oe.Reason)

	env.clock.advance(30*time.Minute + time.Second)
	_, err = env.svc.VerifyDeliveryOtp(ctx, courier1, "o1", "o1-so1", so.DeliveryOtp)
	oe, isInvalidOtp = apperrors.IsInvalidOtpError(err)
	require.True(t, isInvalidOtp)
	assert.Equal(t, apperrors.OtpExpired, oe.Reason)

	assert.Equal(t, domain.StatusOutOfDelivery, env.shopOrder(t, "o1", "o1-so1").Status)
}

func TestVerifyDeliveryOtp_AtExpiryInstantIsStillValid(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	so := env.dispatch(t, "o1")

	env.clock.advance(30 * time.Minute)
	_, err := env.svc.VerifyDeliveryOtp(context.Background(), courier1, "o1", "o1-so1", so.DeliveryOtp)

	assert.NoError(t, err)
}

func TestVerifyDeliveryOtp_SecondSubmissionFindsNoCode(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	so := env.dispatch(t, "o1")
	ctx := context.Background()

	_, err := env.svc.VerifyDeliveryOtp(ctx, courier1, "o1", "o1-so1", so.DeliveryOtp)
	require.NoError(t, err)

	_, err = env.svc.VerifyDeliveryOtp(ctx, courier1, "o1", "o1-so1", so.DeliveryOtp)
	oe, isInvalidOtp := apperrors.IsInvalidOtpError(err)
	require.True(t, isInvalidOtp)
	assert.Equal(t, apperrors.OtpMissing, oe.Reason)
}

func TestRegenerateExpiredOtp(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	old := env.dispatch(t, "o1")
	ref := domain.ShopOrderRef{OrderID: "o1", ShopOrderID: "o1-so1"}
	ctx := context.Background()

	changed, err := env.svc.RegenerateExpiredOtp(ctx, ref)
	require.NoError(t, err)
	assert.False(t, changed, "live code is left alone")

	env.clock.advance(2 * time.Hour)
	changed, err = env.svc.RegenerateExpiredOtp(ctx, ref)
	require.NoError(t, err)
	assert.True(t, changed)

	so := env.shopOrder(t, "o1", "o1-so1")
	assert.NotEqual(t, old.DeliveryOtp, so.DeliveryOtp)
	assert.Equal(t, env.clock.t.Add(30*time.Minute), *so.OtpExpiresAt)
	assert.Equal(t, domain.StatusOutOfDelivery, so.Status)
	assert.Equal(t, courier1.ID, so.AssignedDeliveryBoyID)
	assert.Contains(t, env.publisher.types(), notify.EventOtpRegenerated)
}

func TestRegenerateExpiredOtp_NothingToRepair(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", false)

	changed, err := env.svc.RegenerateExpiredOtp(context.Background(), domain.ShopOrderRef{OrderID: "o1", ShopOrderID: "o1-so1"})

	require.NoError(t, err)
	assert.False(t, changed)
}

// Cancellation

func TestCancelOrder_AllPending(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)

	order, err := env.svc.CancelOrder(context.Background(), customer, "o1", "ordered twice")

	require.NoError(t, err)
	assert.True(t, order.IsCancelled)
	assert.Equal(t, "ordered twice", order.CancelReason)
	assert.True(t, order.AllShopOrdersIn(domain.StatusCancelled))
	assert.True(t, order.TotalAmount.Equal(order.ComputeTotal()))
	assert.Equal(t, []notify.EventType{notify.EventOrderCancelled}, env.publisher.types())

	_, err = env.svc.ApplyStatusTransition(context.Background(), ownerA, "o1", "shop-a", domain.StatusConfirmed)
	_, isInvalid := apperrors.IsInvalidTransitionError(err)
	assert.True(t, isInvalid, "no cooking after cancel")

	again, err := env.svc.CancelOrder(context.Background(), customer, "o1", "ordered twice")
	require.NoError(t, err)
	assert.True(t, again.IsCancelled)
}

func TestCancelOrder_AfterConfirm(t *testing.T) {
	for _, status := range []domain.ShopOrderStatus{domain.StatusConfirmed, domain.StatusPreparing, domain.StatusRejected, domain.StatusOutOfDelivery} {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv(t)
			env.placeOrder(t, "o1", true)
			env.transition(t, ownerB, "o1", "shop-b", status)

			_, err := env.svc.CancelOrder(context.Background(), customer, "o1", "too slow")

			_, isInvalidState := apperrors.IsInvalidStateError(err)
			assert.True(t, isInvalidState)
			assert.Equal(t, domain.StatusPending, env.shopOrder(t, "o1", "o1-so1").Status)
		})
	}
}

func TestCancelOrder_OnlyTheCustomer(t *testing.T) {
	for _, actor := range []domain.Actor{stranger, ownerA, courier1, admin} {
		env := newTestEnv(t)
		env.placeOrder(t, "o1", true)

		_, err := env.svc.CancelOrder(context.Background(), actor, "o1", "")

		_, isForbidden := apperrors.IsForbiddenError(err)
		assert.True(t, isForbidden, "actor %s", actor.Role)
	}
}

// Special instructions, payment, visibility

func TestUpdateSpecialInstructions(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	ctx := context.Background()

	order, err := env.svc.UpdateSpecialInstructions(ctx, customer, "o1", "no onions")
	require.NoError(t, err)
	assert.Equal(t, "no onions", order.SpecialInstructions)

	_, err = env.svc.UpdateSpecialInstructions(ctx, stranger, "o1", "extra onions")
	_, isForbidden := apperrors.IsForbiddenError(err)
	assert.True(t, isForbidden)

	env.transition(t, ownerA, "o1", "shop-a", domain.StatusOutOfDelivery)
	_, err = env.svc.UpdateSpecialInstructions(ctx, customer, "o1", "leave at gate")
	_, isInvalidState := apperrors.IsInvalidStateError(err)
	assert.True(t, isInvalidState)
}

func TestConfirmPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.placeOrder(t, "cod", true)

	_, err := env.svc.ConfirmPayment(ctx, customer, "cod")
	_, isInvalidState := apperrors.IsInvalidStateError(err)
	assert.True(t, isInvalidState)

	online := &domain.Order{ID: "online", CustomerID: customer.ID, PaymentMethod: domain.PaymentOnline,
		ShopOrders: []domain.ShopOrder{{ID: "online-so1", ShopID: "shop-a", OwnerID: ownerA.ID, Status: domain.StatusPending}}}
	require.NoError(t, env.store.Insert(ctx, online))

	_, err = env.svc.ConfirmPayment(ctx, stranger, "online")
	_, isForbidden := apperrors.IsForbiddenError(err)
	assert.True(t, isForbidden)

	order, err := env.svc.ConfirmPayment(ctx, customer, "online")
	require.NoError(t, err)
	assert.True(t, order.PaymentConfirmed)

	order, err = env.svc.ConfirmPayment(ctx, admin, "online")
	require.NoError(t, err)
	assert.True(t, order.PaymentConfirmed)
}

func TestHideOrder_PerRole(t *testing.T) {
	env := newTestEnv(t)
	env.placeOrder(t, "o1", true)
	env.dispatch(t, "o1")
	ctx := context.Background()

	require.NoError(t, env.svc.HideOrder(ctx, customer, "o1"))
	require.NoError(t, env.svc.DeleteOrder(ctx, ownerB, "o1"))
	require.NoError(t, env.svc.HideOrder(ctx, courier1, "o1"))

	order, err := env.store.FindByID(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, order.HiddenForCustomer)
	assert.False(t, order.ShopOrders[0].HiddenForOwner)
	assert.True(t, order.ShopOrders[0].HiddenForCourier)
	assert.True(t, order.ShopOrders[1].HiddenForOwner)
	assert.Len(t, order.ShopOrders, 2, "nothing is deleted")

	for _, actor := range []domain.Actor{stranger, courier2, admin, {ID: "owner-z", Role: domain.RoleOwner}} {
		err := env.svc.HideOrder(ctx, actor, "o1")
		_, isForbidden := apperrors.IsForbiddenError(err)
		assert.True(t, isForbidden, "actor %s/%s", actor.Role, actor.ID)
	}
}
