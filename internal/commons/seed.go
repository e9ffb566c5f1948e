package commons

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"mealrun/internal/domain"
)

// Seed is the fixture file used to populate the in-memory store for local runs.
type Seed struct {
	Shops    []SeedShop    `yaml:"shops"`
	Couriers []SeedCourier `yaml:"couriers"`
}

type SeedShop struct {
	ID      string `yaml:"id"`
	OwnerID string `yaml:"ownerId"`
	Name    string `yaml:"name"`
}

type SeedCourier struct {
	ID         string `yaml:"id"`
	FullName   string `yaml:"fullName"`
	Email      string `yaml:"email"`
	Mobile     string `yaml:"mobile"`
	IsApproved bool   `yaml:"isApproved"`
	IsActive   bool   `yaml:"isActive"`
}

func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	for i, s := range seed.Shops {
		if s.ID == "" || s.OwnerID == "" {
			return nil, fmt.Errorf("seed shop %d: id and ownerId are required", i)
		}
	}
	for i, c := range seed.Couriers {
		if c.ID == "" {
			return nil, fmt.Errorf("seed courier %d: id is required", i)
		}
	}

	return &seed, nil
}

func (s *Seed) DomainShops() []domain.Shop {
	shops := make([]domain.Shop, 0, len(s.Shops))
	for _, sh := range s.Shops {
		shops = append(shops, domain.Shop{ID: sh.ID, OwnerID: sh.OwnerID, Name: sh.Name})
	}
	return shops
}

func (s *Seed) DomainCouriers() []domain.Courier {
	couriers := make([]domain.Courier, 0, len(s.Couriers))
	for _, c := range s.Couriers {
		couriers = append(couriers, domain.Courier{
			ID:         c.ID,
			FullName:   c.FullName,
			Email:      c.Email,
			Mobile:     c.Mobile,
			IsApproved: c.IsApproved,
			IsActive:   c.IsActive,
		})
	}
	return couriers
}
