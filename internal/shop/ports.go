package shop

import (
	"context"

	"mealrun/internal/domain"
)

type Service interface {
	GetShopsByIDs(ctx context.Context, ids []string) (found map[string]domain.Shop, notFoundIDs []string, err error)
}

type Repository interface {
	FindByIDs(ctx context.Context, ids []string) ([]domain.Shop, error)
}
