package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mealrun/internal/domain"
	apperrors "mealrun/internal/errors"
	"mealrun/internal/notify"
)

type OtpResult struct {
	OrderID     string
	ShopOrderID string
	// Otp is only filled in for the customer; couriers get it from them at the door.
	Otp        string
	ExpiresAt  time.Time
	IsExisting bool
}

// GenerateDeliveryOtp returns the live code for an out-for-delivery shop
// order, or rotates in a fresh one when none is live. A live code is never
// replaced since it may already have been shared with the courier.
func (s *LifecycleService) GenerateDeliveryOtp(ctx context.Context, actor domain.Actor, orderID, shopOrderID string) (*OtpResult, error) {
	order, so, err := s.loadShopOrder(ctx, orderID, shopOrderID)
	if err != nil {
		return nil, err
	}

	isCustomer := actor.Is(domain.RoleUser, order.CustomerID)
	isCourier := actor.Role == domain.RoleCourier && so.AssignedDeliveryBoyID == actor.ID
	if !isCustomer && !isCourier {
		return nil, apperrors.NewForbiddenError("only the customer or the assigned courier may request the delivery OTP")
	}
	if so.Status != domain.StatusOutOfDelivery || !order.HasDeliveryAddress() {
		return nil, apperrors.NewInvalidStateError("delivery OTP is only available while a delivery order is out for delivery")
	}

	now := s.now()
	result := &OtpResult{OrderID: order.ID, ShopOrderID: so.ID}

	if so.HasLiveOtp(now) {
		result.Otp = so.DeliveryOtp
		result.ExpiresAt = *so.OtpExpiresAt
		result.IsExisting = true
	} else {
		next, err := s.rotateOtp(ctx, so, now)
		if err != nil {
			if _, stale := apperrors.IsInvalidTransitionError(err); !stale {
				return nil, err
			}
			// Someone rotated first; hand out theirs.
			_, fresh, reloadErr := s.loadShopOrder(ctx, orderID, shopOrderID)
			if reloadErr != nil {
				return nil, reloadErr
			}
			if !fresh.HasLiveOtp(now) {
				return nil, err
			}
			next = fresh
			result.IsExisting = true
		}
		result.Otp = next.DeliveryOtp
		result.ExpiresAt = *next.OtpExpiresAt
	}

	if !result.IsExisting || isCourier {
		notify.NotifyOtpBestEffort(ctx, s.notifier, s.logger, order.CustomerEmail, order.ID, result.Otp, result.ExpiresAt)
	}

	s.logger.Info("delivery otp requested",
		zap.String("orderId", order.ID),
		zap.String("shopOrderId", so.ID),
		zap.Bool("isExisting", result.IsExisting),
		zap.String("role", string(actor.Role)),
	)

	if !isCustomer {
		result.Otp = ""
	}
	return result, nil
}

// VerifyDeliveryOtp is the only way a delivery order reaches delivered.
func (s *LifecycleService) VerifyDeliveryOtp(ctx context.Context, actor domain.Actor, orderID, shopOrderID, submitted string) (*TransitionResult, error) {
	order, so, err := s.loadShopOrder(ctx, orderID, shopOrderID)
	if err != nil {
		return nil, err
	}

	if actor.Role != domain.RoleCourier || so.AssignedDeliveryBoyID != actor.ID {
		return nil, apperrors.NewForbiddenError("only the assigned courier may confirm delivery")
	}

	now := s.now()
	if !so.HasOtp() {
		return nil, apperrors.NewInvalidOtpError("no delivery OTP has been issued", apperrors.OtpMissing)
	}
	if now.After(*so.OtpExpiresAt) {
		s.logger.Warn("expired delivery otp submitted", zap.String("orderId", orderID), zap.String("shopOrderId", so.ID))
		return nil, apperrors.NewInvalidOtpError("delivery OTP has expired", apperrors.OtpExpired)
	}
	if !otpMatches(so.DeliveryOtp, submitted) {
		s.logger.Warn("wrong delivery otp submitted", zap.String("orderId", orderID), zap.String("shopOrderId", so.ID))
		return nil, apperrors.NewInvalidOtpError("delivery OTP does not match", apperrors.OtpMismatch)
	}

	if domain.CheckTransition(domain.RoleCourier, so.Status, domain.StatusDelivered, order.HasDeliveryAddress()) != domain.VerdictOtpRequired {
		return nil, apperrors.NewInvalidTransitionError("shop order cannot be delivered by OTP", string(so.Status), string(domain.StatusDelivered))
	}

	next := so.Clone()
	next.Status = domain.StatusDelivered
	next.UpdatedAt = now
	complete(&next, now)

	if err := s.orders.UpdateShopOrder(ctx, so, &next); err != nil {
		return nil, err
	}
	*so = next

	s.logger.Info("delivery confirmed",
		zap.String("orderId", order.ID),
		zap.String("shopOrderId", so.ID),
		zap.String("courierId", actor.ID),
		zap.String("receiptNumber", so.Receipt.Number),
	)
	s.publish(ctx, notify.Event{
		Type:        notify.EventStatusChanged,
		OrderID:     order.ID,
		ShopOrderID: so.ID,
		Status:      string(so.Status),
		ActorID:     actor.ID,
	})

	return &TransitionResult{Order: order, ShopOrder: *so, Changed: true}, nil
}

// RegenerateExpiredOtp replaces a dead code on a shop order that is still
// out for delivery. It reports false when there was nothing to repair.
func (s *LifecycleService) RegenerateExpiredOtp(ctx context.Context, ref domain.ShopOrderRef) (bool, error) {
	order, so, err := s.loadShopOrder(ctx, ref.OrderID, ref.ShopOrderID)
	if err != nil {
		return false, err
	}

	now := s.now()
	if so.Status != domain.StatusOutOfDelivery || !order.HasDeliveryAddress() || !so.HasOtp() || so.HasLiveOtp(now) {
		return false, nil
	}

	next, err := s.rotateOtp(ctx, so, now)
	if err != nil {
		if _, stale := apperrors.IsInvalidTransitionError(err); stale {
			return false, nil
		}
		return false, err
	}

	s.logger.Info("delivery otp regenerated", zap.String("orderId", order.ID), zap.String("shopOrderId", so.ID))
	notify.NotifyOtpBestEffort(ctx, s.notifier, s.logger, order.CustomerEmail, order.ID, next.DeliveryOtp, *next.OtpExpiresAt)
	s.publish(ctx, notify.Event{Type: notify.EventOtpRegenerated, OrderID: order.ID, ShopOrderID: so.ID})

	return true, nil
}

// rotateOtp writes a fresh code over so, conditioned on so's current code.
func (s *LifecycleService) rotateOtp(ctx context.Context, so *domain.ShopOrder, now time.Time) (*domain.ShopOrder, error) {
	next := so.Clone()
	next.UpdatedAt = now
	if err := s.issueOtp(&next, now); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateShopOrder(ctx, so, &next); err != nil {
		return nil, err
	}
	return &next, nil
}
