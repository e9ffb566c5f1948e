package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mealrun/internal/auth"
	"mealrun/internal/commons"
	"mealrun/internal/delivery/service"
	"mealrun/internal/domain"
	"mealrun/internal/dto"
	apperrors "mealrun/internal/errors"
)

const dateLayout = "2006-01-02"

type Matcher interface {
	ListEligibleCouriers(ctx context.Context, actor domain.Actor, shopOrderID string) ([]domain.Courier, error)
	AcceptAssignment(ctx context.Context, actor domain.Actor, shopOrderID string) (*domain.Delivery, error)
	ListOffersFor(ctx context.Context, actor domain.Actor) ([]domain.Delivery, error)
	CurrentDeliveryFor(ctx context.Context, actor domain.Actor) (*domain.Delivery, error)
	DeliveriesOn(ctx context.Context, actor domain.Actor, day time.Time) ([]domain.Delivery, error)
	DeliveryCounts(ctx context.Context, actor domain.Actor, day time.Time) ([]service.HourlyCount, error)
	SetAvailability(ctx context.Context, actor domain.Actor, active bool) error
	ApproveCourier(ctx context.Context, actor domain.Actor, courierID string, approve bool) error
}

type DeliveryController struct {
	matcher Matcher
	logger  *zap.Logger
	now     func() time.Time
}

func NewDeliveryController(matcher Matcher, logger *zap.Logger) *DeliveryController {
	return &DeliveryController{
		matcher: matcher,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (c *DeliveryController) EligibleCouriers(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	couriers, err := c.matcher.ListEligibleCouriers(r.Context(), actor, chi.URLParam(r, "shopOrderId"))
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewCourierListResponse(couriers), logger)
}

func (c *DeliveryController) GetAssignments(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	offers, err := c.matcher.ListOffersFor(r.Context(), actor)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewDeliveryListResponse(offers), logger)
}

func (c *DeliveryController) AcceptAssignment(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	delivery, err := c.matcher.AcceptAssignment(r.Context(), actor, chi.URLParam(r, "shopOrderId"))
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewDeliveryResponse(*delivery), logger)
}

func (c *DeliveryController) CurrentDelivery(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	delivery, err := c.matcher.CurrentDeliveryFor(r.Context(), actor)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewDeliveryResponse(*delivery), logger)
}

func (c *DeliveryController) Deliveries(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}
	day, ok := c.parseDate(w, r, traceID, logger)
	if !ok {
		return
	}

	delivered, err := c.matcher.DeliveriesOn(r.Context(), actor, day)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewDeliveryListResponse(delivered), logger)
}

func (c *DeliveryController) Counts(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}
	day, ok := c.parseDate(w, r, traceID, logger)
	if !ok {
		return
	}

	counts, err := c.matcher.DeliveryCounts(r.Context(), actor, day)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	resp := dto.DeliveryCountsResponse{
		Date:   day.Format(dateLayout),
		Counts: make([]dto.HourCount, len(counts)),
	}
	for i, hc := range counts {
		resp.Counts[i] = dto.HourCount{Hour: hc.Hour, Count: hc.Count}
		resp.Total += hc.Count
	}

	commons.WriteJSON(w, http.StatusOK, resp, logger)
}

func (c *DeliveryController) SetAvailability(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	var req dto.AvailabilityRequest
	if !commons.DecodeJSON(w, r, traceID, &req, logger) {
		return
	}
	if req.IsActive == nil {
		commons.WriteValidationError(w, traceID, "isActive is required", logger, apperrors.ValidationDetail{Field: "isActive", Message: "isActive is required"})
		return
	}

	if err := c.matcher.SetAvailability(r.Context(), actor, *req.IsActive); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"courierId": actor.ID,
		"isActive":  *req.IsActive,
	}, logger)
}

func (c *DeliveryController) ApproveCourier(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	var req dto.ApproveCourierRequest
	if !commons.DecodeJSON(w, r, traceID, &req, logger) {
		return
	}
	if req.Approve == nil {
		commons.WriteValidationError(w, traceID, "approve is required", logger, apperrors.ValidationDetail{Field: "approve", Message: "approve is required"})
		return
	}

	courierID := chi.URLParam(r, "courierId")
	if err := c.matcher.ApproveCourier(r.Context(), actor, courierID, *req.Approve); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"courierId":  courierID,
		"isApproved": *req.Approve,
	}, logger)
}

// parseDate reads ?date=YYYY-MM-DD, defaulting to today in UTC.
func (c *DeliveryController) parseDate(w http.ResponseWriter, r *http.Request, traceID string, logger *zap.Logger) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		now := c.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}
	day, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		commons.WriteValidationError(w, traceID, "invalid date", logger, apperrors.ValidationDetail{
			Field:   "date",
			Message: "date must use the YYYY-MM-DD format",
		})
		return time.Time{}, false
	}
	return day, true
}
