package delivery

import (
	"go.uber.org/zap"

	"mealrun/internal/config"
	"mealrun/internal/delivery/controller"
	"mealrun/internal/delivery/service"
	"mealrun/internal/notify"
)

type Module struct {
	Controller *controller.DeliveryController
	Matcher    *service.MatcherService
}

func NewModule(
	couriers service.CourierRepository,
	deliveries service.DeliveryRepository,
	events notify.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *Module {
	matcher := service.NewMatcherService(
		couriers,
		deliveries,
		events,
		service.MatcherConfig{
			TxTimeout:        cfg.Order.TxTimeout,
			MaxRetryAttempts: cfg.Order.MaxRetryAttempts,
		},
		logger,
	)

	return &Module{
		Controller: controller.NewDeliveryController(matcher, logger),
		Matcher:    matcher,
	}
}
