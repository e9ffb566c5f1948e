package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"mealrun/internal/domain"
	apperrors "mealrun/internal/errors"
	"mealrun/internal/notify"
)

type CourierRepository interface {
	FindCourier(ctx context.Context, id string) (*domain.Courier, error)
	ListAvailableCouriers(ctx context.Context) ([]domain.Courier, error)
	AssignCourier(ctx context.Context, shopOrderID, courierID string, at time.Time) error
	SetAvailability(ctx context.Context, id string, active bool) error
	SetApproval(ctx context.Context, id string, approved bool) error
}

type DeliveryRepository interface {
	FindDelivery(ctx context.Context, shopOrderID string) (*domain.Delivery, error)
	ListOpenOffers(ctx context.Context) ([]domain.Delivery, error)
	FindActiveDelivery(ctx context.Context, courierID string) (*domain.Delivery, error)
	ListDeliveredBetween(ctx context.Context, courierID string, from, to time.Time) ([]domain.Delivery, error)
}

type MatcherConfig struct {
	TxTimeout        time.Duration
	MaxRetryAttempts int
}

// MatcherService offers out-for-delivery shop orders to eligible couriers
// and arbitrates who gets each one.
type MatcherService struct {
	couriers   CourierRepository
	deliveries DeliveryRepository
	events     notify.Publisher
	cfg        MatcherConfig
	logger     *zap.Logger
	now        func() time.Time
	sleep      func(time.Duration)
}

func NewMatcherService(
	couriers CourierRepository,
	deliveries DeliveryRepository,
	events notify.Publisher,
	cfg MatcherConfig,
	logger *zap.Logger,
) *MatcherService {
	if cfg.MaxRetryAttempts < 1 {
		cfg.MaxRetryAttempts = 1
	}
	return &MatcherService{
		couriers:   couriers,
		deliveries: deliveries,
		events:     events,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		sleep:      time.Sleep,
	}
}

// OpenOffer announces a shop order that just went out for delivery to the
// couriers eligible right now.
func (s *MatcherService) OpenOffer(ctx context.Context, delivery domain.Delivery) error {
	eligible, err := s.couriers.ListAvailableCouriers(ctx)
	if err != nil {
		return err
	}

	ids := make([]string, len(eligible))
	for i, c := range eligible {
		ids[i] = c.ID
	}
	s.logger.Info("delivery offer opened",
		zap.String("orderId", delivery.OrderID),
		zap.String("shopOrderId", delivery.ShopOrder.ID),
		zap.Int("eligibleCount", len(ids)),
	)
	notify.PublishBestEffort(ctx, s.events, s.logger, notify.Event{
		Type:        notify.EventOfferOpened,
		OrderID:     delivery.OrderID,
		ShopOrderID: delivery.ShopOrder.ID,
		CourierIDs:  ids,
		OccurredAt:  s.now(),
	})
	return nil
}

// ListEligibleCouriers is informational for the shop's dashboard. It holds no lock.
func (s *MatcherService) ListEligibleCouriers(ctx context.Context, actor domain.Actor, shopOrderID string) ([]domain.Courier, error) {
	delivery, err := s.deliveries.FindDelivery(ctx, shopOrderID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(domain.RoleOwner, delivery.ShopOrder.OwnerID) && actor.Role != domain.RoleSuperAdmin {
		return nil, apperrors.NewForbiddenError("only the shop's owner may list eligible couriers")
	}
	if !delivery.ShopOrder.IsOpenOffer() {
		return []domain.Courier{}, nil
	}

	eligible, err := s.couriers.ListAvailableCouriers(ctx)
	if err != nil {
		return nil, err
	}
	if eligible == nil {
		eligible = []domain.Courier{}
	}
	return eligible, nil
}

// AcceptAssignment gives the shop order to actor if nobody else has it yet.
// Eligibility is checked again inside the store write, not taken from any
// earlier listing.
func (s *MatcherService) AcceptAssignment(ctx context.Context, actor domain.Actor, shopOrderID string) (*domain.Delivery, error) {
	if actor.Role != domain.RoleCourier {
		return nil, apperrors.NewForbiddenError("only couriers may accept deliveries")
	}

	s.logger.Info("accept-assignment started", zap.String("shopOrderId", shopOrderID), zap.String("courierId", actor.ID))

	before, err := s.deliveries.FindDelivery(ctx, shopOrderID)
	if err != nil {
		return nil, err
	}
	if before.ShopOrder.AssignedDeliveryBoyID == actor.ID {
		masked := before.WithoutOtp()
		return &masked, nil
	}

	if err := s.assignWithRetry(ctx, shopOrderID, actor.ID); err != nil {
		if _, lost := apperrors.IsConflictError(err); lost {
			s.logger.Warn("assignment race lost", zap.String("shopOrderId", shopOrderID), zap.String("courierId", actor.ID))
		}
		return nil, err
	}

	delivery, err := s.deliveries.FindDelivery(ctx, shopOrderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("delivery assigned",
		zap.String("orderId", delivery.OrderID),
		zap.String("shopOrderId", shopOrderID),
		zap.String("courierId", actor.ID),
	)
	notify.PublishBestEffort(ctx, s.events, s.logger, notify.Event{
		Type:        notify.EventAssignmentAccepted,
		OrderID:     delivery.OrderID,
		ShopOrderID: shopOrderID,
		ActorID:     actor.ID,
		OccurredAt:  s.now(),
	})

	masked := delivery.WithoutOtp()
	return &masked, nil
}

func (s *MatcherService) assignWithRetry(ctx context.Context, shopOrderID, courierID string) error {
	maxAttempts := s.cfg.MaxRetryAttempts
	// Backoff intervals: attempt 1 (0ms), attempt 2 (100ms), attempt 3 (200ms), etc.
	backoff := func(attempt int) time.Duration { return time.Duration(attempt-1) * 100 * time.Millisecond }

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.assignOnce(ctx, shopOrderID, courierID)
		if err == nil {
			return nil
		}

		if !isDeadlockError(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		// ±20% jitter
		base := backoff(attempt)
		jitter := time.Duration(float64(base) * (rand.Float64()*0.4 - 0.2))
		s.logger.Warn("deadlock detected, retrying", zap.Int("attempt", attempt), zap.Int("maxAttempts", maxAttempts), zap.String("shopOrderId", shopOrderID))
		s.sleep(base + jitter)
	}

	return apperrors.NewDeadlockError("max retries exceeded")
}

func (s *MatcherService) assignOnce(ctx context.Context, shopOrderID, courierID string) error {
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()
	return s.couriers.AssignCourier(txCtx, shopOrderID, courierID, s.now())
}

func isDeadlockError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}

// ListOffersFor returns the open offers a courier could accept right now,
// or none when the courier is not eligible.
func (s *MatcherService) ListOffersFor(ctx context.Context, actor domain.Actor) ([]domain.Delivery, error) {
	courier, err := s.requireCourier(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !courier.Available() {
		return []domain.Delivery{}, nil
	}
	if _, err := s.deliveries.FindActiveDelivery(ctx, courier.ID); err == nil {
		return []domain.Delivery{}, nil
	} else if _, none := apperrors.IsNotFoundError(err); !none {
		return nil, err
	}

	offers, err := s.deliveries.ListOpenOffers(ctx)
	if err != nil {
		return nil, err
	}
	return withoutOtps(offers), nil
}

func (s *MatcherService) CurrentDeliveryFor(ctx context.Context, actor domain.Actor) (*domain.Delivery, error) {
	if actor.Role != domain.RoleCourier {
		return nil, apperrors.NewForbiddenError("only couriers have deliveries")
	}
	d, err := s.deliveries.FindActiveDelivery(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	masked := d.WithoutOtp()
	return &masked, nil
}

// DeliveriesOn lists what the courier delivered on day's UTC calendar date.
func (s *MatcherService) DeliveriesOn(ctx context.Context, actor domain.Actor, day time.Time) ([]domain.Delivery, error) {
	if actor.Role != domain.RoleCourier {
		return nil, apperrors.NewForbiddenError("only couriers have deliveries")
	}
	from, to := dayBounds(day)
	delivered, err := s.deliveries.ListDeliveredBetween(ctx, actor.ID, from, to)
	if err != nil {
		return nil, err
	}
	return withoutOtps(delivered), nil
}

type HourlyCount struct {
	Hour  int
	Count int
}

// DeliveryCounts buckets the day's deliveries by UTC hour. Hours without
// deliveries are left out.
func (s *MatcherService) DeliveryCounts(ctx context.Context, actor domain.Actor, day time.Time) ([]HourlyCount, error) {
	delivered, err := s.DeliveriesOn(ctx, actor, day)
	if err != nil {
		return nil, err
	}

	byHour := make(map[int]int)
	for _, d := range delivered {
		byHour[d.ShopOrder.DeliveredAt.UTC().Hour()]++
	}
	counts := make([]HourlyCount, 0, len(byHour))
	for hour, n := range byHour {
		counts = append(counts, HourlyCount{Hour: hour, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Hour < counts[j].Hour })
	return counts, nil
}

func (s *MatcherService) SetAvailability(ctx context.Context, actor domain.Actor, active bool) error {
	if actor.Role != domain.RoleCourier {
		return apperrors.NewForbiddenError("only couriers toggle availability")
	}
	if err := s.couriers.SetAvailability(ctx, actor.ID, active); err != nil {
		return err
	}
	s.logger.Info("courier availability updated", zap.String("courierId", actor.ID), zap.Bool("isActive", active))
	return nil
}

func (s *MatcherService) ApproveCourier(ctx context.Context, actor domain.Actor, courierID string, approve bool) error {
	if actor.Role != domain.RoleSuperAdmin {
		return apperrors.NewForbiddenError("only the superadmin approves couriers")
	}
	if err := s.couriers.SetApproval(ctx, courierID, approve); err != nil {
		return err
	}
	s.logger.Info("courier approval updated", zap.String("courierId", courierID), zap.Bool("isApproved", approve))
	return nil
}

func (s *MatcherService) requireCourier(ctx context.Context, actor domain.Actor) (*domain.Courier, error) {
	if actor.Role != domain.RoleCourier {
		return nil, apperrors.NewForbiddenError("only couriers see delivery offers")
	}
	courier, err := s.couriers.FindCourier(ctx, actor.ID)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("courier profile %s not found", actor.ID))
		}
		return nil, err
	}
	return courier, nil
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

func withoutOtps(ds []domain.Delivery) []domain.Delivery {
	out := make([]domain.Delivery, len(ds))
	for i, d := range ds {
		out[i] = d.WithoutOtp()
	}
	return out
}
