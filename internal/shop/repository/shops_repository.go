package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"mealrun/internal/domain"
)

type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (r *MySQLRepository) FindByIDs(ctx context.Context, ids []string) ([]domain.Shop, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, ownerId, name
		FROM Shops
		WHERE id IN (%s)`,
		strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying shops: %w", err)
	}
	defer rows.Close()

	var shops []domain.Shop
	for rows.Next() {
		var s domain.Shop
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name); err != nil {
			return nil, fmt.Errorf("scanning shop row: %w", err)
		}
		shops = append(shops, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shop rows: %w", err)
	}

	return shops, nil
}

func (r *MySQLRepository) Upsert(ctx context.Context, s domain.Shop) error {
	query := `
		INSERT INTO Shops (id, ownerId, name) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE ownerId = VALUES(ownerId), name = VALUES(name)
	`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.OwnerID, s.Name); err != nil {
		return fmt.Errorf("upserting shop: %w", err)
	}
	return nil
}
