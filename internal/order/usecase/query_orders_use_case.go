package usecase

import (
	"context"
	"fmt"

	"mealrun/internal/domain"
	apperrors "mealrun/internal/errors"
)

type OrderReader interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error)
	ListByCourier(ctx context.Context, courierID string) ([]*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.Order, error)
}

// QueryOrdersUseCase serves the per-role order views. Owners only see their
// own shop orders, couriers only the ones assigned to them, and nobody but
// the customer sees a delivery OTP.
type QueryOrdersUseCase struct {
	orders OrderReader
}

func NewQueryOrdersUseCase(orders OrderReader) *QueryOrdersUseCase {
	return &QueryOrdersUseCase{orders: orders}
}

func (uc *QueryOrdersUseCase) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	order, err := uc.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	view, ok := viewFor(actor, order)
	if !ok {
		return nil, apperrors.NewForbiddenError(fmt.Sprintf("order %s is not visible to %s %s", orderID, actor.Role, actor.ID))
	}
	return view, nil
}

// ListOrdersFor lists the caller's dashboard, leaving out what the caller hid.
func (uc *QueryOrdersUseCase) ListOrdersFor(ctx context.Context, actor domain.Actor) ([]*domain.Order, error) {
	var (
		orders []*domain.Order
		err    error
	)
	switch actor.Role {
	case domain.RoleUser:
		orders, err = uc.orders.ListByCustomer(ctx, actor.ID)
	case domain.RoleOwner:
		orders, err = uc.orders.ListByOwner(ctx, actor.ID)
	case domain.RoleCourier:
		orders, err = uc.orders.ListByCourier(ctx, actor.ID)
	case domain.RoleSuperAdmin:
		orders, err = uc.orders.ListAll(ctx)
	default:
		return nil, apperrors.NewForbiddenError(fmt.Sprintf("role %q has no order dashboard", actor.Role))
	}
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		view, ok := viewFor(actor, o)
		if !ok || hiddenFrom(actor, view) {
			continue
		}
		out = append(out, view)
	}
	return out, nil
}

// viewFor projects o onto what actor may see. It edits o in place.
func viewFor(actor domain.Actor, o *domain.Order) (*domain.Order, bool) {
	switch actor.Role {
	case domain.RoleUser:
		return o, o.CustomerID == actor.ID
	case domain.RoleSuperAdmin:
		maskOtps(o)
		return o, true
	case domain.RoleOwner:
		o.ShopOrders = keepShopOrders(o.ShopOrders, func(so *domain.ShopOrder) bool { return so.OwnerID == actor.ID })
	case domain.RoleCourier:
		o.ShopOrders = keepShopOrders(o.ShopOrders, func(so *domain.ShopOrder) bool { return so.AssignedDeliveryBoyID == actor.ID })
	default:
		return nil, false
	}
	// The total covers only the shop orders left in the view.
	o.TotalAmount = o.ComputeTotal()
	maskOtps(o)
	return o, len(o.ShopOrders) > 0
}

func hiddenFrom(actor domain.Actor, view *domain.Order) bool {
	switch actor.Role {
	case domain.RoleUser:
		return view.HiddenForCustomer
	case domain.RoleOwner:
		for _, so := range view.ShopOrders {
			if !so.HiddenForOwner {
				return false
			}
		}
		return true
	case domain.RoleCourier:
		for _, so := range view.ShopOrders {
			if !so.HiddenForCourier {
				return false
			}
		}
		return true
	}
	return false
}

func keepShopOrders(sos []domain.ShopOrder, keep func(so *domain.ShopOrder) bool) []domain.ShopOrder {
	out := sos[:0]
	for i := range sos {
		if keep(&sos[i]) {
			out = append(out, sos[i])
		}
	}
	return out
}

func maskOtps(o *domain.Order) {
	for i := range o.ShopOrders {
		o.ShopOrders[i].DeliveryOtp = ""
	}
}
