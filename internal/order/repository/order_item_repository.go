package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"mealrun/internal/domain"
)

type MySQLShopOrderItemRepository struct {
	db *sql.DB
}

func NewMySQLShopOrderItemRepository(db *sql.DB) *MySQLShopOrderItemRepository {
	return &MySQLShopOrderItemRepository{db: db}
}

func (r *MySQLShopOrderItemRepository) Insert(ctx context.Context, tx *sql.Tx, shopOrderID string, item domain.Item) (uint, error) {
	query := `INSERT INTO ShopOrderItems (shopOrderId, itemId, name, price, quantity) VALUES (?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query, shopOrderID, item.ItemID, item.Name, item.Price, item.Quantity)
	if err != nil {
		return 0, fmt.Errorf("inserting shop order item: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

// FindByShopOrderIDs returns the snapshots keyed by shop order, in insertion order.
func (r *MySQLShopOrderItemRepository) FindByShopOrderIDs(ctx context.Context, ids []string) (map[string][]domain.Item, error) {
	items := make(map[string][]domain.Item, len(ids))
	if len(ids) == 0 {
		return items, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT shopOrderId, itemId, name, price, quantity
		FROM ShopOrderItems
		WHERE shopOrderId IN (%s)
		ORDER BY id`,
		strings.Join(placeholders, ", "),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying shop order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var shopOrderID string
		var it domain.Item
		if err := rows.Scan(&shopOrderID, &it.ItemID, &it.Name, &it.Price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scanning shop order item row: %w", err)
		}
		items[shopOrderID] = append(items[shopOrderID], it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shop order item rows: %w", err)
	}

	return items, nil
}
