package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mealrun/internal/domain"
	"mealrun/internal/errors"
)

// MemoryStore keeps orders, couriers and shops in process. Every write holds
// the mutex for its whole precondition check, so the conditional writes have
// the same outcomes as their MySQL counterparts.
type MemoryStore struct {
	mu         sync.RWMutex
	orders     map[string]*domain.Order
	shopOrders map[string]string // shop order id -> order id
	couriers   map[string]domain.Courier
	shops      map[string]domain.Shop
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:     make(map[string]*domain.Order),
		shopOrders: make(map[string]string),
		couriers:   make(map[string]domain.Courier),
		shops:      make(map[string]domain.Shop),
	}
}

func (m *MemoryStore) PutShop(s domain.Shop) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shops[s.ID] = s
}

func (m *MemoryStore) PutCourier(c domain.Courier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.couriers[c.ID] = c
}

// Shops

func (m *MemoryStore) FindByIDs(_ context.Context, ids []string) ([]domain.Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Shop
	for _, id := range ids {
		if s, ok := m.shops[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Orders

func (m *MemoryStore) Insert(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.orders[order.ID]; exists {
		return errors.NewConflictError(fmt.Sprintf("order with id %s already exists", order.ID))
	}
	stored := order.Clone()
	m.orders[stored.ID] = stored
	for _, so := range stored.ShopOrders {
		m.shopOrders[so.ID] = stored.ID
	}
	return nil
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
	}
	return o.Clone(), nil
}

func (m *MemoryStore) FindByShopOrderID(_ context.Context, shopOrderID string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, _, err := m.lookupShopOrder(shopOrderID)
	if err != nil {
		return nil, err
	}
	return o.Clone(), nil
}

func (m *MemoryStore) ListByCustomer(_ context.Context, customerID string) ([]*domain.Order, error) {
	return m.listWhere(func(o *domain.Order) bool { return o.CustomerID == customerID }), nil
}

func (m *MemoryStore) ListByOwner(_ context.Context, ownerID string) ([]*domain.Order, error) {
	return m.listWhere(func(o *domain.Order) bool { return o.OwnsShopOrder(ownerID) }), nil
}

func (m *MemoryStore) ListByCourier(_ context.Context, courierID string) ([]*domain.Order, error) {
	return m.listWhere(func(o *domain.Order) bool { return o.AssignedTo(courierID) }), nil
}

func (m *MemoryStore) ListAll(_ context.Context) ([]*domain.Order, error) {
	return m.listWhere(func(*domain.Order) bool { return true }), nil
}

func (m *MemoryStore) UpdateShopOrder(_ context.Context, prev, next *domain.ShopOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, so, err := m.lookupShopOrder(prev.ID)
	if err != nil {
		return err
	}
	if so.Status != prev.Status || so.DeliveryOtp != prev.DeliveryOtp || !sameTime(so.OtpExpiresAt, prev.OtpExpiresAt) {
		return errors.NewInvalidTransitionError("shop order was modified concurrently", string(prev.Status), string(next.Status))
	}

	updated := next.Clone()
	so.Status = updated.Status
	so.DeliveryOtp = updated.DeliveryOtp
	so.OtpExpiresAt = updated.OtpExpiresAt
	so.DeliveredAt = updated.DeliveredAt
	so.Receipt = updated.Receipt
	so.UpdatedAt = updated.UpdatedAt
	return nil
}

func (m *MemoryStore) CancelOrder(_ context.Context, orderID, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", orderID))
	}
	if o.IsCancelled {
		return errors.NewInvalidStateError("order is already cancelled")
	}
	if !o.AllShopOrdersIn(domain.StatusPending) {
		return errors.NewInvalidStateError("order can only be cancelled while every shop order is pending")
	}

	for i := range o.ShopOrders {
		o.ShopOrders[i].Status = domain.StatusCancelled
		o.ShopOrders[i].UpdatedAt = at
	}
	o.IsCancelled = true
	o.CancelReason = reason
	o.UpdatedAt = at
	return nil
}

func (m *MemoryStore) UpdateSpecialInstructions(_ context.Context, orderID, text string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", orderID))
	}
	if !o.InstructionsEditable() {
		return errors.NewInvalidStateError("special instructions can no longer be changed")
	}
	o.SpecialInstructions = text
	o.UpdatedAt = at
	return nil
}

func (m *MemoryStore) ConfirmPayment(_ context.Context, orderID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", orderID))
	}
	if o.PaymentMethod != domain.PaymentOnline || o.IsCancelled {
		return errors.NewInvalidStateError("payment can only be confirmed for live online orders")
	}
	o.PaymentConfirmed = true
	o.UpdatedAt = at
	return nil
}

func (m *MemoryStore) HideForCustomer(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", orderID))
	}
	o.HiddenForCustomer = true
	return nil
}

func (m *MemoryStore) HideShopOrdersForOwner(_ context.Context, orderID, ownerID string) error {
	return m.hideShopOrders(orderID, func(so *domain.ShopOrder) bool {
		if so.OwnerID != ownerID {
			return false
		}
		so.HiddenForOwner = true
		return true
	}, fmt.Sprintf("no shop orders of order %s for owner %s", orderID, ownerID))
}

func (m *MemoryStore) HideShopOrdersForCourier(_ context.Context, orderID, courierID string) error {
	return m.hideShopOrders(orderID, func(so *domain.ShopOrder) bool {
		if so.AssignedDeliveryBoyID != courierID {
			return false
		}
		so.HiddenForCourier = true
		return true
	}, fmt.Sprintf("no shop orders of order %s for courier %s", orderID, courierID))
}

func (m *MemoryStore) ListExpiredOtps(_ context.Context, now time.Time) ([]domain.ShopOrderRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type expired struct {
		ref domain.ShopOrderRef
		at  time.Time
	}
	var found []expired
	for _, o := range m.orders {
		for _, so := range o.ShopOrders {
			if so.Status == domain.StatusOutOfDelivery && so.OtpExpiresAt != nil && so.OtpExpiresAt.Before(now) {
				found = append(found, expired{
					ref: domain.ShopOrderRef{OrderID: o.ID, ShopOrderID: so.ID},
					at:  *so.OtpExpiresAt,
				})
			}
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].at.Before(found[j].at) })

	refs := make([]domain.ShopOrderRef, len(found))
	for i, e := range found {
		refs[i] = e.ref
	}
	return refs, nil
}

// Deliveries

func (m *MemoryStore) FindDelivery(_ context.Context, shopOrderID string) (*domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, _, err := m.lookupShopOrder(shopOrderID)
	if err != nil {
		return nil, err
	}
	c := o.Clone()
	so, _ := c.ShopOrderByID(shopOrderID)
	d := domain.DeliveryFrom(c, so)
	return &d, nil
}

func (m *MemoryStore) ListOpenOffers(_ context.Context) ([]domain.Delivery, error) {
	orders := m.listWhere(func(*domain.Order) bool { return true })
	return deliveriesWhere(orders, func(_ *domain.Order, so *domain.ShopOrder) bool {
		return so.IsOpenOffer()
	}), nil
}

func (m *MemoryStore) FindActiveDelivery(_ context.Context, courierID string) (*domain.Delivery, error) {
	orders := m.listWhere(func(o *domain.Order) bool { return o.AssignedTo(courierID) })
	active := deliveriesWhere(orders, func(_ *domain.Order, so *domain.ShopOrder) bool {
		return so.AssignedDeliveryBoyID == courierID && so.Status == domain.StatusOutOfDelivery
	})
	if len(active) == 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("courier %s has no active delivery", courierID))
	}
	return &active[0], nil
}

func (m *MemoryStore) ListDeliveredBetween(_ context.Context, courierID string, from, to time.Time) ([]domain.Delivery, error) {
	orders := m.listWhere(func(o *domain.Order) bool { return o.AssignedTo(courierID) })
	out := deliveriesWhere(orders, func(_ *domain.Order, so *domain.ShopOrder) bool {
		return deliveredBy(so, courierID, from, to)
	})
	sortByDeliveredAt(out)
	return out, nil
}

// Couriers

func (m *MemoryStore) FindCourier(_ context.Context, id string) (*domain.Courier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.couriers[id]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("courier with id %s not found", id))
	}
	return &c, nil
}

func (m *MemoryStore) ListAvailableCouriers(_ context.Context) ([]domain.Courier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.Courier
	for _, c := range m.couriers {
		if c.Available() && !m.busy(c.ID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) AssignCourier(_ context.Context, shopOrderID, courierID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.couriers[courierID]
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("courier with id %s not found", courierID))
	}

	_, so, err := m.lookupShopOrder(shopOrderID)
	if err != nil {
		return err
	}
	if so.IsAssigned() {
		if so.AssignedDeliveryBoyID == courierID {
			return nil
		}
		return errors.NewConflictError("shop order already assigned to another courier")
	}
	if so.Status != domain.StatusOutOfDelivery {
		return errors.NewInvalidStateError("shop order is not awaiting a courier")
	}

	if !c.Available() {
		return errors.NewForbiddenError("courier is not approved or not active")
	}
	if m.busy(courierID) {
		return errors.NewForbiddenError("courier already has an active delivery")
	}

	assignedAt := at
	so.AssignedDeliveryBoyID = courierID
	so.AssignedAt = &assignedAt
	so.UpdatedAt = at
	return nil
}

func (m *MemoryStore) SetAvailability(_ context.Context, id string, active bool) error {
	return m.updateCourier(id, func(c *domain.Courier) { c.IsActive = active })
}

func (m *MemoryStore) SetApproval(_ context.Context, id string, approved bool) error {
	return m.updateCourier(id, func(c *domain.Courier) { c.IsApproved = approved })
}

func (m *MemoryStore) updateCourier(id string, apply func(c *domain.Courier)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.couriers[id]
	if !ok {
		return errors.NewNotFoundError(fmt.Sprintf("courier with id %s not found", id))
	}
	apply(&c)
	m.couriers[id] = c
	return nil
}

// busy must be called with the lock held.
func (m *MemoryStore) busy(courierID string) bool {
	for _, o := range m.orders {
		for _, so := range o.ShopOrders {
			if so.AssignedDeliveryBoyID == courierID && so.Status == domain.StatusOutOfDelivery {
				return true
			}
		}
	}
	return false
}

// lookupShopOrder must be called with the lock held. It returns live pointers.
func (m *MemoryStore) lookupShopOrder(shopOrderID string) (*domain.Order, *domain.ShopOrder, error) {
	notFound := errors.NewNotFoundError(fmt.Sprintf("shop order with id %s not found", shopOrderID))
	orderID, ok := m.shopOrders[shopOrderID]
	if !ok {
		return nil, nil, notFound
	}
	o := m.orders[orderID]
	so, ok := o.ShopOrderByID(shopOrderID)
	if !ok {
		return nil, nil, notFound
	}
	return o, so, nil
}

func (m *MemoryStore) hideShopOrders(orderID string, hide func(so *domain.ShopOrder) bool, notFoundMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return errors.NewNotFoundError(notFoundMsg)
	}
	hidden := 0
	for i := range o.ShopOrders {
		if hide(&o.ShopOrders[i]) {
			hidden++
		}
	}
	if hidden == 0 {
		return errors.NewNotFoundError(notFoundMsg)
	}
	return nil
}

func (m *MemoryStore) listWhere(keep func(o *domain.Order) bool) []*domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Order
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
