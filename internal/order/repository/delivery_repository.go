package repository

import (
	"context"
	"fmt"
	"time"

	"mealrun/internal/domain"
	"mealrun/internal/errors"
)

func (r *MySQLOrderRepository) FindDelivery(ctx context.Context, shopOrderID string) (*domain.Delivery, error) {
	order, err := r.FindByShopOrderID(ctx, shopOrderID)
	if err != nil {
		return nil, err
	}
	so, ok := order.ShopOrderByID(shopOrderID)
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("shop order with id %s not found", shopOrderID))
	}
	d := domain.DeliveryFrom(order, so)
	return &d, nil
}

func (r *MySQLOrderRepository) ListOpenOffers(ctx context.Context) ([]domain.Delivery, error) {
	orders, err := r.loadOrders(ctx,
		`o.id IN (SELECT orderId FROM ShopOrders WHERE status = ? AND assignedDeliveryBoyId IS NULL)`,
		string(domain.StatusOutOfDelivery),
	)
	if err != nil {
		return nil, err
	}
	return deliveriesWhere(orders, func(_ *domain.Order, so *domain.ShopOrder) bool {
		return so.IsOpenOffer()
	}), nil
}

func (r *MySQLOrderRepository) FindActiveDelivery(ctx context.Context, courierID string) (*domain.Delivery, error) {
	orders, err := r.loadOrders(ctx,
		`o.id IN (SELECT orderId FROM ShopOrders WHERE assignedDeliveryBoyId = ? AND status = ?)`,
		courierID, string(domain.StatusOutOfDelivery),
	)
	if err != nil {
		return nil, err
	}
	active := deliveriesWhere(orders, func(_ *domain.Order, so *domain.ShopOrder) bool {
		return so.AssignedDeliveryBoyID == courierID && so.Status == domain.StatusOutOfDelivery
	})
	if len(active) == 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("courier %s has no active delivery", courierID))
	}
	return &active[0], nil
}

// ListDeliveredBetween returns what the courier delivered in [from, to), oldest first.
func (r *MySQLOrderRepository) ListDeliveredBetween(ctx context.Context, courierID string, from, to time.Time) ([]domain.Delivery, error) {
	orders, err := r.loadOrders(ctx,
		`o.id IN (SELECT orderId FROM ShopOrders
		          WHERE assignedDeliveryBoyId = ? AND status = ? AND deliveredAt >= ? AND deliveredAt < ?)`,
		courierID, string(domain.StatusDelivered), dbTime(from), dbTime(to),
	)
	if err != nil {
		return nil, err
	}
	out := deliveriesWhere(orders, func(_ *domain.Order, so *domain.ShopOrder) bool {
		return deliveredBy(so, courierID, from, to)
	})
	sortByDeliveredAt(out)
	return out, nil
}

func deliveredBy(so *domain.ShopOrder, courierID string, from, to time.Time) bool {
	return so.AssignedDeliveryBoyID == courierID &&
		so.Status == domain.StatusDelivered &&
		so.DeliveredAt != nil &&
		!so.DeliveredAt.Before(from) &&
		so.DeliveredAt.Before(to)
}
