package order

import (
	"go.uber.org/zap"

	"mealrun/internal/config"
	"mealrun/internal/notify"
	"mealrun/internal/order/controller"
	"mealrun/internal/order/service"
	"mealrun/internal/order/usecase"
	"mealrun/internal/shop"
)

// Store is everything the order module needs from persistence. Both
// repository.MySQLOrderRepository and repository.MemoryStore satisfy it.
type Store interface {
	service.OrderRepository
	usecase.OrderReader
	usecase.OrderWriter
}

type Deps struct {
	Orders   Store
	Shops    shop.Repository
	Offers   service.OfferOpener
	Notifier notify.OtpNotifier
	Events   notify.Publisher
}

type Module struct {
	Controller *controller.OrderController
	Lifecycle  *service.LifecycleService
}

func NewModule(deps Deps, cfg *config.Config, logger *zap.Logger) *Module {
	lifecycle := service.NewLifecycleService(
		deps.Orders,
		deps.Offers,
		service.NewRandomOtpGenerator(cfg.Otp.Length),
		deps.Notifier,
		deps.Events,
		service.LifecycleConfig{
			OtpTTL:    cfg.Otp.TTL,
			TxTimeout: cfg.Order.TxTimeout,
		},
		logger,
	)

	placer := usecase.NewPlaceOrderUseCase(
		deps.Orders,
		shop.NewService(deps.Shops),
		deps.Events,
		logger,
		cfg.Order.TxTimeout,
	)

	queries := usecase.NewQueryOrdersUseCase(deps.Orders)

	return &Module{
		Controller: controller.NewOrderController(placer, queries, lifecycle, logger),
		Lifecycle:  lifecycle,
	}
}
