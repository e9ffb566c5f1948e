package controller

import (
	"context"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mealrun/internal/auth"
	"mealrun/internal/commons"
	"mealrun/internal/domain"
	"mealrun/internal/dto"
	apperrors "mealrun/internal/errors"
	"mealrun/internal/order/service"
)

const (
	maxCartItems          = 100
	maxItemQuantity       = 100
	maxInstructionsLength = 500
	// Column widths of the MySQL store.
	maxAddressLength  = 255
	maxItemNameLength = 150
	maxIDLength       = 36
	maxReasonLength   = 255
)

// maxItemPrice keeps the largest possible cart (maxCartItems lines of
// maxItemQuantity) within DECIMAL(12,2).
var maxItemPrice = decimal.RequireFromString("999999.99")

type PlaceOrderUseCase interface {
	PlaceOrder(ctx context.Context, actor domain.Actor, cmd dto.PlaceOrderCommand) (*domain.Order, error)
}

type QueryOrdersUseCase interface {
	GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	ListOrdersFor(ctx context.Context, actor domain.Actor) ([]*domain.Order, error)
}

type LifecycleService interface {
	ApplyStatusTransition(ctx context.Context, actor domain.Actor, orderID, shopID string, target domain.ShopOrderStatus) (*service.TransitionResult, error)
	GenerateDeliveryOtp(ctx context.Context, actor domain.Actor, orderID, shopOrderID string) (*service.OtpResult, error)
	VerifyDeliveryOtp(ctx context.Context, actor domain.Actor, orderID, shopOrderID, submitted string) (*service.TransitionResult, error)
	CancelOrder(ctx context.Context, actor domain.Actor, orderID, reason string) (*domain.Order, error)
	UpdateSpecialInstructions(ctx context.Context, actor domain.Actor, orderID, text string) (*domain.Order, error)
	ConfirmPayment(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	HideOrder(ctx context.Context, actor domain.Actor, orderID string) error
	DeleteOrder(ctx context.Context, actor domain.Actor, orderID string) error
}

type OrderController struct {
	placer    PlaceOrderUseCase
	queries   QueryOrdersUseCase
	lifecycle LifecycleService
	logger    *zap.Logger
}

func NewOrderController(placer PlaceOrderUseCase, queries QueryOrdersUseCase, lifecycle LifecycleService, logger *zap.Logger) *OrderController {
	return &OrderController{
		placer:    placer,
		queries:   queries,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

func (c *OrderController) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	traceID := commons.NewTraceID()
	logger := c.logger.With(zap.String("traceId", traceID))

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		commons.WriteUnauthorized(w, traceID, "missing identity", logger)
		return
	}

	var req dto.PlaceOrderRequest
	if !commons.DecodeJSON(w, r, traceID, &req, logger) {
		return
	}

	if err := validatePlaceOrderRequest(req); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	order, err := c.placer.PlaceOrder(r.Context(), principal.Actor, toPlaceOrderCommand(req, principal.Email))
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusCreated, dto.NewOrderResponse(order), logger)
}

func (c *OrderController) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	order, err := c.lifecycle.ConfirmPayment(r.Context(), actor, chi.URLParam(r, "orderId"))
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewOrderResponse(order), logger)
}

func (c *OrderController) MyOrders(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	orders, err := c.queries.ListOrdersFor(r.Context(), actor)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewOrderListResponse(orders), logger)
}

func (c *OrderController) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	order, err := c.queries.GetOrder(r.Context(), actor, chi.URLParam(r, "orderId"))
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewOrderResponse(order), logger)
}

func (c *OrderController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if !commons.DecodeJSON(w, r, traceID, &req, logger) {
		return
	}
	target, known := domain.ParseShopOrderStatus(req.Status)
	if !known {
		commons.WriteValidationError(w, traceID, "unknown status", logger, apperrors.ValidationDetail{
			Field:   "status",
			Message: "status must be one of pending, confirmed, preparing, out of delivery, delivered, rejected",
		})
		return
	}

	orderID := chi.URLParam(r, "orderId")
	result, err := c.lifecycle.ApplyStatusTransition(r.Context(), actor, orderID, chi.URLParam(r, "shopId"), target)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.StatusUpdateResponse{
		OrderID:   orderID,
		ShopOrder: dto.NewShopOrderResponse(maskFor(actor, result.Order, result.ShopOrder)),
		Changed:   result.Changed,
	}, logger)
}

func (c *OrderController) SendDeliveryOtp(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	var req dto.DeliveryOtpRequest
	if !commons.DecodeJSON(w, r, traceID, &req, logger) {
		return
	}
	if err := requireIDs(req.OrderID, req.ShopOrderID); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	result, err := c.lifecycle.GenerateDeliveryOtp(r.Context(), actor, req.OrderID, req.ShopOrderID)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.OtpResponse{
		OrderID:     result.OrderID,
		ShopOrderID: result.ShopOrderID,
		Otp:         result.Otp,
		ExpiresAt:   result.ExpiresAt,
		IsExisting:  result.IsExisting,
	}, logger)
}

func (c *OrderController) VerifyDeliveryOtp(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	var req dto.VerifyOtpRequest
	if !commons.DecodeJSON(w, r, traceID, &req, logger) {
		return
	}
	if err := requireIDs(req.OrderID, req.ShopOrderID); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}
	if req.Otp == "" {
		commons.WriteValidationError(w, traceID, "otp is required", logger, apperrors.ValidationDetail{Field: "otp", Message: "otp is required"})
		return
	}

	result, err := c.lifecycle.VerifyDeliveryOtp(r.Context(), actor, req.OrderID, req.ShopOrderID, req.Otp)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.StatusUpdateResponse{
		OrderID:   req.OrderID,
		ShopOrder: dto.NewShopOrderResponse(result.ShopOrder),
		Changed:   result.Changed,
	}, logger)
}

func (c *OrderController) CancelOrder(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	var req dto.CancelOrderRequest
	if r.ContentLength != 0 && !commons.DecodeJSON(w, r, traceID, &req, logger) {
		return
	}
	if utf8.RuneCountInString(req.Reason) > maxReasonLength {
		commons.WriteValidationError(w, traceID, "reason too long", logger, apperrors.ValidationDetail{
			Field:   "reason",
			Message: "reason must be at most " + strconv.Itoa(maxReasonLength) + " characters",
		})
		return
	}

	order, err := c.lifecycle.CancelOrder(r.Context(), actor, chi.URLParam(r, "orderId"), req.Reason)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewOrderResponse(order), logger)
}

func (c *OrderController) UpdateSpecialInstructions(w http.ResponseWriter, r *http.Request) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	var req dto.SpecialInstructionsRequest
	if !commons.DecodeJSON(w, r, traceID, &req, logger) {
		return
	}
	if len(req.SpecialInstructions) > maxInstructionsLength {
		commons.WriteValidationError(w, traceID, "specialInstructions too long", logger, apperrors.ValidationDetail{
			Field:   "specialInstructions",
			Message: "specialInstructions must be at most " + strconv.Itoa(maxInstructionsLength) + " characters",
		})
		return
	}

	order, err := c.lifecycle.UpdateSpecialInstructions(r.Context(), actor, chi.URLParam(r, "orderId"), req.SpecialInstructions)
	if err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, dto.NewOrderResponse(order), logger)
}

func (c *OrderController) HideOrder(w http.ResponseWriter, r *http.Request) {
	c.hide(w, r, c.lifecycle.HideOrder)
}

func (c *OrderController) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	c.hide(w, r, c.lifecycle.DeleteOrder)
}

func (c *OrderController) hide(w http.ResponseWriter, r *http.Request, hide func(ctx context.Context, actor domain.Actor, orderID string) error) {
	traceID, logger, actor, ok := commons.BeginRequest(w, r, c.logger, auth.ActorFromContext)
	if !ok {
		return
	}

	orderID := chi.URLParam(r, "orderId")
	if err := hide(r.Context(), actor, orderID); err != nil {
		commons.WriteError(w, traceID, err, logger)
		return
	}

	commons.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"orderId": orderID,
		"hidden":  true,
	}, logger)
}

// maskFor strips the delivery OTP unless actor is the order's customer.
func maskFor(actor domain.Actor, order *domain.Order, so domain.ShopOrder) domain.ShopOrder {
	if order == nil || !actor.Is(domain.RoleUser, order.CustomerID) {
		so.DeliveryOtp = ""
	}
	return so
}

func requireIDs(orderID, shopOrderID string) error {
	var details []apperrors.ValidationDetail
	if orderID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "orderId", Message: "orderId is required"})
	}
	if shopOrderID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "shopOrderId", Message: "shopOrderId is required"})
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}
