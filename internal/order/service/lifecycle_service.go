package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mealrun/internal/domain"
	apperrors "mealrun/internal/errors"
	"mealrun/internal/notify"
)

type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	UpdateShopOrder(ctx context.Context, prev, next *domain.ShopOrder) error
	CancelOrder(ctx context.Context, orderID, reason string, at time.Time) error
	UpdateSpecialInstructions(ctx context.Context, orderID, text string, at time.Time) error
	ConfirmPayment(ctx context.Context, orderID string, at time.Time) error
	HideForCustomer(ctx context.Context, orderID string) error
	HideShopOrdersForOwner(ctx context.Context, orderID, ownerID string) error
	HideShopOrdersForCourier(ctx context.Context, orderID, courierID string) error
}

// OfferOpener is told about every shop order that just went out for delivery.
type OfferOpener interface {
	OpenOffer(ctx context.Context, delivery domain.Delivery) error
}

type LifecycleConfig struct {
	OtpTTL    time.Duration
	TxTimeout time.Duration
}

// LifecycleService owns every mutation of an order after placement.
type LifecycleService struct {
	orders   OrderRepository
	offers   OfferOpener
	otpGen   OtpGenerator
	notifier notify.OtpNotifier
	events   notify.Publisher
	cfg      LifecycleConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewLifecycleService(
	orders OrderRepository,
	offers OfferOpener,
	otpGen OtpGenerator,
	notifier notify.OtpNotifier,
	events notify.Publisher,
	cfg LifecycleConfig,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		orders:   orders,
		offers:   offers,
		otpGen:   otpGen,
		notifier: notifier,
		events:   events,
		cfg:      cfg,
		logger:   logger,
		now:      defaultClock,
	}
}

type TransitionResult struct {
	Order     *domain.Order
	ShopOrder domain.ShopOrder
	// Changed is false when the shop order was already in the target status.
	Changed bool
}

func (s *LifecycleService) ApplyStatusTransition(
	ctx context.Context,
	actor domain.Actor,
	orderID string,
	shopID string,
	target domain.ShopOrderStatus,
) (*TransitionResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	so, ok := order.ShopOrderByShop(shopID)
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no shop order for shop %s in order %s", shopID, orderID))
	}

	if err := authorizeTransition(actor, order, so); err != nil {
		s.logger.Warn("status transition refused", zap.String("orderId", orderID), zap.String("shopOrderId", so.ID), zap.String("actorId", actor.ID), zap.String("role", string(actor.Role)))
		return nil, err
	}

	if so.Status == target {
		s.logger.Info("status transition is a no-op", zap.String("orderId", orderID), zap.String("shopOrderId", so.ID), zap.String("status", string(target)))
		return &TransitionResult{Order: order, ShopOrder: *so}, nil
	}

	if order.IsCancelled || so.Status.IsTerminal() {
		return nil, apperrors.NewInvalidTransitionError("shop order is in a terminal state", string(so.Status), string(target))
	}

	switch domain.CheckTransition(actor.Role, so.Status, target, order.HasDeliveryAddress()) {
	case domain.VerdictAllowed:
	case domain.VerdictNotPermitted:
		return nil, apperrors.NewForbiddenError(fmt.Sprintf("role %s may not move a shop order from %s to %s", actor.Role, so.Status, target))
	case domain.VerdictOtpRequired:
		return nil, apperrors.NewInvalidTransitionError("delivery must be confirmed through OTP verification", string(so.Status), string(target))
	default:
		return nil, apperrors.NewInvalidTransitionError(fmt.Sprintf("%s is not reachable from %s", target, so.Status), string(so.Status), string(target))
	}

	now := s.now()
	next := so.Clone()
	next.Status = target
	next.UpdatedAt = now

	switch target {
	case domain.StatusOutOfDelivery:
		if order.HasDeliveryAddress() {
			if err := s.issueOtp(&next, now); err != nil {
				return nil, err
			}
		}
	case domain.StatusDelivered:
		complete(&next, now)
	case domain.StatusRejected:
		next.ClearOtp()
	}

	if err := s.orders.UpdateShopOrder(ctx, so, &next); err != nil {
		if _, stale := apperrors.IsInvalidTransitionError(err); stale {
			s.logger.Warn("status transition lost to a concurrent write", zap.String("orderId", orderID), zap.String("shopOrderId", so.ID))
		}
		return nil, err
	}
	*so = next

	s.logger.Info("shop order status updated",
		zap.String("orderId", orderID),
		zap.String("shopOrderId", so.ID),
		zap.String("status", string(so.Status)),
		zap.String("actorId", actor.ID),
	)
	s.publish(ctx, notify.Event{
		Type:        notify.EventStatusChanged,
		OrderID:     order.ID,
		ShopOrderID: so.ID,
		Status:      string(so.Status),
		ActorID:     actor.ID,
	})

	if so.Status == domain.StatusOutOfDelivery && so.HasOtp() {
		if s.offers != nil {
			if err := s.offers.OpenOffer(ctx, domain.DeliveryFrom(order, so)); err != nil {
				s.logger.Warn("failed to open delivery offer", zap.String("shopOrderId", so.ID), zap.Error(err))
			}
		}
		notify.NotifyOtpBestEffort(ctx, s.notifier, s.logger, order.CustomerEmail, order.ID, so.DeliveryOtp, *so.OtpExpiresAt)
	}

	return &TransitionResult{Order: order, ShopOrder: *so, Changed: true}, nil
}

func authorizeTransition(actor domain.Actor, order *domain.Order, so *domain.ShopOrder) error {
	switch actor.Role {
	case domain.RoleOwner:
		if so.OwnerID == actor.ID {
			return nil
		}
		return apperrors.NewForbiddenError("only the shop's owner may update this shop order")
	case domain.RoleCourier:
		if so.AssignedDeliveryBoyID == actor.ID {
			return nil
		}
		return apperrors.NewForbiddenError("only the assigned courier may update this shop order")
	case domain.RoleUser:
		if order.CustomerID == actor.ID {
			return nil
		}
		return apperrors.NewForbiddenError("order belongs to another customer")
	}
	return apperrors.NewForbiddenError(fmt.Sprintf("role %q may not update shop orders", actor.Role))
}

// CancelOrder cancels the whole order. Only the customer may do it, and only
// while no shop has started on it.
func (s *LifecycleService) CancelOrder(ctx context.Context, actor domain.Actor, orderID, reason string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(domain.RoleUser, order.CustomerID) {
		return nil, apperrors.NewForbiddenError("only the customer who placed the order may cancel it")
	}
	if order.IsCancelled {
		return order, nil
	}
	if !order.AllShopOrdersIn(domain.StatusPending) {
		s.logger.Warn("cancellation refused", zap.String("orderId", orderID))
		return nil, apperrors.NewInvalidStateError("order can only be cancelled while every shop order is pending")
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	if err := s.orders.CancelOrder(txCtx, orderID, reason, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled", zap.String("orderId", orderID), zap.Int("shopOrderCount", len(order.ShopOrders)))
	s.publish(ctx, notify.Event{Type: notify.EventOrderCancelled, OrderID: orderID, ActorID: actor.ID})

	return s.orders.FindByID(ctx, orderID)
}

func (s *LifecycleService) UpdateSpecialInstructions(ctx context.Context, actor domain.Actor, orderID, text string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(domain.RoleUser, order.CustomerID) {
		return nil, apperrors.NewForbiddenError("only the customer may edit special instructions")
	}
	if !order.InstructionsEditable() {
		return nil, apperrors.NewInvalidStateError("special instructions can no longer be changed")
	}

	if err := s.orders.UpdateSpecialInstructions(ctx, orderID, text, s.now()); err != nil {
		return nil, err
	}
	s.logger.Info("special instructions updated", zap.String("orderId", orderID))

	return s.orders.FindByID(ctx, orderID)
}

// ConfirmPayment records a verified online payment. The gateway check itself
// happens before this call.
func (s *LifecycleService) ConfirmPayment(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(domain.RoleUser, order.CustomerID) && actor.Role != domain.RoleSuperAdmin {
		return nil, apperrors.NewForbiddenError("only the customer may confirm payment")
	}
	if order.PaymentMethod != domain.PaymentOnline {
		return nil, apperrors.NewInvalidStateError("cash on delivery orders need no payment confirmation")
	}
	if order.IsCancelled {
		return nil, apperrors.NewInvalidStateError("order is cancelled")
	}
	if order.PaymentConfirmed {
		return order, nil
	}

	if err := s.orders.ConfirmPayment(ctx, orderID, s.now()); err != nil {
		return nil, err
	}
	s.logger.Info("payment confirmed", zap.String("orderId", orderID))

	return s.orders.FindByID(ctx, orderID)
}

// HideOrder removes the order from the caller's own dashboard. Nothing is deleted.
func (s *LifecycleService) HideOrder(ctx context.Context, actor domain.Actor, orderID string) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	switch actor.Role {
	case domain.RoleUser:
		if order.CustomerID != actor.ID {
			return apperrors.NewForbiddenError("order belongs to another customer")
		}
		err = s.orders.HideForCustomer(ctx, orderID)
	case domain.RoleOwner:
		if !order.OwnsShopOrder(actor.ID) {
			return apperrors.NewForbiddenError("order has no shop order of this owner")
		}
		err = s.orders.HideShopOrdersForOwner(ctx, orderID, actor.ID)
	case domain.RoleCourier:
		if !order.AssignedTo(actor.ID) {
			return apperrors.NewForbiddenError("order has no delivery of this courier")
		}
		err = s.orders.HideShopOrdersForCourier(ctx, orderID, actor.ID)
	default:
		return apperrors.NewForbiddenError(fmt.Sprintf("role %q has no order dashboard", actor.Role))
	}
	if err != nil {
		return err
	}

	s.logger.Info("order hidden", zap.String("orderId", orderID), zap.String("role", string(actor.Role)), zap.String("actorId", actor.ID))
	return nil
}

// DeleteOrder is the dashboard "delete" action; it only hides.
func (s *LifecycleService) DeleteOrder(ctx context.Context, actor domain.Actor, orderID string) error {
	return s.HideOrder(ctx, actor, orderID)
}

func (s *LifecycleService) loadShopOrder(ctx context.Context, orderID, shopOrderID string) (*domain.Order, *domain.ShopOrder, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	so, ok := order.ShopOrderByID(shopOrderID)
	if !ok {
		return nil, nil, apperrors.NewNotFoundError(fmt.Sprintf("shop order %s not found in order %s", shopOrderID, orderID))
	}
	return order, so, nil
}

func (s *LifecycleService) issueOtp(so *domain.ShopOrder, now time.Time) error {
	code, err := s.otpGen.Generate()
	if err != nil {
		return apperrors.NewInternalError("generating delivery otp", err)
	}
	expiresAt := now.Add(s.cfg.OtpTTL)
	so.DeliveryOtp = code
	so.OtpExpiresAt = &expiresAt
	return nil
}

// complete clears the code and issues the receipt together with the status change.
func complete(so *domain.ShopOrder, now time.Time) {
	so.ClearOtp()
	deliveredAt := now
	so.DeliveredAt = &deliveredAt
	so.Receipt = newReceipt(so, now)
}

func (s *LifecycleService) publish(ctx context.Context, event notify.Event) {
	event.OccurredAt = s.now()
	notify.PublishBestEffort(ctx, s.events, s.logger, event)
}
