package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mealrun/internal/domain"
	"mealrun/internal/dto"
	apperrors "mealrun/internal/errors"
	"mealrun/internal/notify"
)

type ShopService interface {
	GetShopsByIDs(ctx context.Context, ids []string) (map[string]domain.Shop, []string, error)
}

type OrderWriter interface {
	Insert(ctx context.Context, order *domain.Order) error
}

type PlaceOrderUseCase struct {
	orders    OrderWriter
	shops     ShopService
	events    notify.Publisher
	logger    *zap.Logger
	txTimeout time.Duration
	now       func() time.Time
}

func NewPlaceOrderUseCase(
	orders OrderWriter,
	shops ShopService,
	events notify.Publisher,
	logger *zap.Logger,
	txTimeout time.Duration,
) *PlaceOrderUseCase {
	return &PlaceOrderUseCase{
		orders:    orders,
		shops:     shops,
		events:    events,
		logger:    logger,
		txTimeout: txTimeout,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// PlaceOrder turns a validated cart into an order with one pending shop order
// per distinct shop. Item prices are snapshotted as given.
func (uc *PlaceOrderUseCase) PlaceOrder(ctx context.Context, actor domain.Actor, cmd dto.PlaceOrderCommand) (*domain.Order, error) {
	// Bloque 1: Pre-validaciones
	if actor.Role != domain.RoleUser {
		return nil, apperrors.NewForbiddenError("only customers may place orders")
	}
	if len(cmd.Lines) == 0 {
		return nil, apperrors.NewValidationError("cart is empty", apperrors.ValidationDetail{Field: "cartItems", Message: "cartItems must not be empty"})
	}
	if cmd.PaymentMethod != domain.PaymentCOD && cmd.PaymentMethod != domain.PaymentOnline {
		return nil, apperrors.NewValidationError("unknown payment method", apperrors.ValidationDetail{Field: "paymentMethod", Message: "paymentMethod must be cod or online"})
	}

	uc.logger.Info("place-order started", zap.String("customerId", actor.ID), zap.Int("lineCount", len(cmd.Lines)))

	// Bloque 2: Agrupar por tienda en orden de aparicion
	shopIDs, linesByShop := groupByShop(cmd.Lines)

	found, notFoundIDs, err := uc.shops.GetShopsByIDs(ctx, shopIDs)
	if err != nil {
		return nil, err
	}
	if len(notFoundIDs) > 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("shops not found: %s", strings.Join(notFoundIDs, ", ")))
	}

	// Bloque 3: Construir la orden
	now := uc.now()
	order := &domain.Order{
		ID:                  uuid.New().String(),
		CustomerID:          actor.ID,
		CustomerEmail:       cmd.CustomerEmail,
		DeliveryAddress:     cmd.DeliveryAddress,
		PaymentMethod:       cmd.PaymentMethod,
		SpecialInstructions: cmd.SpecialInstructions,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	for _, shopID := range shopIDs {
		items := linesByShop[shopID]
		order.ShopOrders = append(order.ShopOrders, domain.ShopOrder{
			ID:        uuid.New().String(),
			OrderID:   order.ID,
			ShopID:    shopID,
			OwnerID:   found[shopID].OwnerID,
			Items:     items,
			Subtotal:  domain.ComputeSubtotal(items),
			Status:    domain.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	order.TotalAmount = order.ComputeTotal()
	if err := order.CheckTotals(); err != nil {
		return nil, apperrors.NewInternalError("building order", err)
	}

	// Bloque 4: Persistir
	txCtx, cancel := context.WithTimeout(ctx, uc.txTimeout)
	defer cancel()

	if err := uc.orders.Insert(txCtx, order); err != nil {
		return nil, err
	}

	uc.logger.Info("order placed",
		zap.String("orderId", order.ID),
		zap.String("customerId", actor.ID),
		zap.Int("shopOrderCount", len(order.ShopOrders)),
		zap.String("totalAmount", order.TotalAmount.StringFixed(2)),
	)
	notify.PublishBestEffort(ctx, uc.events, uc.logger, notify.Event{
		Type:       notify.EventOrderPlaced,
		OrderID:    order.ID,
		ActorID:    actor.ID,
		OccurredAt: now,
	})

	return order, nil
}

func groupByShop(lines []dto.CartLine) ([]string, map[string][]domain.Item) {
	var shopIDs []string
	byShop := make(map[string][]domain.Item)
	for _, l := range lines {
		if _, seen := byShop[l.ShopID]; !seen {
			shopIDs = append(shopIDs, l.ShopID)
		}
		byShop[l.ShopID] = append(byShop[l.ShopID], domain.Item{
			ItemID:   l.ItemID,
			Name:     l.Name,
			Price:    l.Price,
			Quantity: l.Quantity,
		})
	}
	return shopIDs, byShop
}
