package shop

import (
	"context"

	"mealrun/internal/domain"
)

type shopService struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &shopService{repo: repo}
}

func (s *shopService) GetShopsByIDs(ctx context.Context, ids []string) (map[string]domain.Shop, []string, error) {
	found, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	foundSet := make(map[string]domain.Shop, len(found))
	for _, sh := range found {
		foundSet[sh.ID] = sh
	}

	var notFoundIDs []string
	for _, id := range ids {
		if _, ok := foundSet[id]; !ok {
			notFoundIDs = append(notFoundIDs, id)
		}
	}

	return foundSet, notFoundIDs, nil
}
