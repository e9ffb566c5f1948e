package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mealrun/internal/domain"
	"mealrun/internal/errors"
)

type MySQLCourierRepository struct {
	db *sql.DB
}

func NewMySQLCourierRepository(db *sql.DB) *MySQLCourierRepository {
	return &MySQLCourierRepository{db: db}
}

func (r *MySQLCourierRepository) FindCourier(ctx context.Context, id string) (*domain.Courier, error) {
	query := `
		SELECT id, fullName, email, mobile, isApproved, isActive
		FROM Couriers
		WHERE id = ?
	`

	var c domain.Courier
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.FullName, &c.Email, &c.Mobile, &c.IsApproved, &c.IsActive)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("courier with id %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying courier by id: %w", err)
	}

	return &c, nil
}

// ListAvailableCouriers returns approved, active couriers without an active delivery.
func (r *MySQLCourierRepository) ListAvailableCouriers(ctx context.Context) ([]domain.Courier, error) {
	query := `
		SELECT c.id, c.fullName, c.email, c.mobile, c.isApproved, c.isActive
		FROM Couriers c
		WHERE c.isApproved = 1 AND c.isActive = 1
		  AND NOT EXISTS (
		      SELECT 1 FROM ShopOrders so
		      WHERE so.assignedDeliveryBoyId = c.id AND so.status = ?
		  )
		ORDER BY c.id
	`

	rows, err := r.db.QueryContext(ctx, query, string(domain.StatusOutOfDelivery))
	if err != nil {
		return nil, fmt.Errorf("querying available couriers: %w", err)
	}
	defer rows.Close()

	var couriers []domain.Courier
	for rows.Next() {
		var c domain.Courier
		if err := rows.Scan(&c.ID, &c.FullName, &c.Email, &c.Mobile, &c.IsApproved, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scanning courier row: %w", err)
		}
		couriers = append(couriers, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating courier rows: %w", err)
	}

	return couriers, nil
}

// AssignCourier is the accept-once arbitration. The courier row lock
// serializes one courier's concurrent accepts; the conditional update on
// assignedDeliveryBoyId decides races between couriers.
func (r *MySQLCourierRepository) AssignCourier(ctx context.Context, shopOrderID, courierID string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	// MySQL ignores rollback if already committed.
	defer tx.Rollback()

	// 1. Lock the courier
	var approved, active bool
	err = tx.QueryRowContext(ctx, `SELECT isApproved, isActive FROM Couriers WHERE id = ? FOR UPDATE`, courierID).Scan(&approved, &active)
	if err == sql.ErrNoRows {
		return errors.NewNotFoundError(fmt.Sprintf("courier with id %s not found", courierID))
	}
	if err != nil {
		return fmt.Errorf("locking courier: %w", err)
	}

	// 2. Inspect the offer
	var status string
	var assigned sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT status, assignedDeliveryBoyId FROM ShopOrders WHERE id = ?`, shopOrderID).Scan(&status, &assigned)
	if err == sql.ErrNoRows {
		return errors.NewNotFoundError(fmt.Sprintf("shop order with id %s not found", shopOrderID))
	}
	if err != nil {
		return fmt.Errorf("querying shop order: %w", err)
	}
	if assigned.Valid {
		if assigned.String == courierID {
			return nil
		}
		return errors.NewConflictError("shop order already assigned to another courier")
	}
	if domain.ShopOrderStatus(status) != domain.StatusOutOfDelivery {
		return errors.NewInvalidStateError("shop order is not awaiting a courier")
	}

	// 3. Re-validate eligibility
	if !(domain.Courier{IsApproved: approved, IsActive: active}).Available() {
		return errors.NewForbiddenError("courier is not approved or not active")
	}
	var busy int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ShopOrders WHERE assignedDeliveryBoyId = ? AND status = ?`,
		courierID, string(domain.StatusOutOfDelivery),
	).Scan(&busy)
	if err != nil {
		return fmt.Errorf("counting active deliveries: %w", err)
	}
	if busy > 0 {
		return errors.NewForbiddenError("courier already has an active delivery")
	}

	// 4. Compare-and-set
	result, err := tx.ExecContext(ctx, `
		UPDATE ShopOrders
		SET assignedDeliveryBoyId = ?, assignedAt = ?, updatedAt = ?
		WHERE id = ? AND status = ? AND assignedDeliveryBoyId IS NULL
	`, courierID, dbTime(at), dbTime(at), shopOrderID, string(domain.StatusOutOfDelivery))
	if err != nil {
		return fmt.Errorf("assigning courier: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewConflictError("shop order already assigned to another courier")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing assignment: %w", err)
	}
	return nil
}

func (r *MySQLCourierRepository) SetAvailability(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE Couriers SET isActive = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("updating courier availability: %w", err)
	}
	return requireRows(result, fmt.Sprintf("courier with id %s not found", id))
}

func (r *MySQLCourierRepository) SetApproval(ctx context.Context, id string, approved bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE Couriers SET isApproved = ? WHERE id = ?`, approved, id)
	if err != nil {
		return fmt.Errorf("updating courier approval: %w", err)
	}
	return requireRows(result, fmt.Sprintf("courier with id %s not found", id))
}

func (r *MySQLCourierRepository) Upsert(ctx context.Context, c domain.Courier) error {
	query := `
		INSERT INTO Couriers (id, fullName, email, mobile, isApproved, isActive)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE fullName = VALUES(fullName), email = VALUES(email), mobile = VALUES(mobile),
		                        isApproved = VALUES(isApproved), isActive = VALUES(isActive)
	`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.FullName, c.Email, c.Mobile, c.IsApproved, c.IsActive); err != nil {
		return fmt.Errorf("upserting courier: %w", err)
	}
	return nil
}
