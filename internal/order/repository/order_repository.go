package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mealrun/internal/domain"
	"mealrun/internal/errors"
)

const orderColumns = `
	o.id, o.customerId, o.customerEmail, o.deliveryAddress, o.deliveryLat, o.deliveryLng,
	o.paymentMethod, o.paymentConfirmed, o.isCancelled, o.cancelReason, o.specialInstructions,
	o.totalAmount, o.hiddenForCustomer, o.createdAt, o.updatedAt`

const shopOrderColumns = `
	id, orderId, shopId, ownerId, subtotal, status, assignedDeliveryBoyId, assignedAt,
	deliveryOtp, otpExpiresAt, deliveredAt, receiptNumber, receiptIssuedAt,
	hiddenForOwner, hiddenForCourier, createdAt, updatedAt`

type MySQLOrderRepository struct {
	db    *sql.DB
	items *MySQLShopOrderItemRepository
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db, items: NewMySQLShopOrderItemRepository(db)}
}

// Insert stores the order with its shop orders and item snapshots in one transaction.
func (r *MySQLOrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var address sql.NullString
	var lat, lng sql.NullFloat64
	if order.DeliveryAddress != nil {
		address = nullString(order.DeliveryAddress.Text)
		if order.DeliveryAddress.Latitude != nil {
			lat = sql.NullFloat64{Float64: *order.DeliveryAddress.Latitude, Valid: true}
		}
		if order.DeliveryAddress.Longitude != nil {
			lng = sql.NullFloat64{Float64: *order.DeliveryAddress.Longitude, Valid: true}
		}
	}

	query := `
		INSERT INTO Orders (id, customerId, customerEmail, deliveryAddress, deliveryLat, deliveryLng,
		                    paymentMethod, paymentConfirmed, isCancelled, cancelReason, specialInstructions,
		                    totalAmount, hiddenForCustomer, createdAt, updatedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		order.ID, order.CustomerID, order.CustomerEmail, address, lat, lng,
		string(order.PaymentMethod), order.PaymentConfirmed, order.IsCancelled, order.CancelReason, order.SpecialInstructions,
		order.TotalAmount, order.HiddenForCustomer, dbTime(order.CreatedAt), dbTime(order.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	for i, so := range order.ShopOrders {
		query := `
			INSERT INTO ShopOrders (id, orderId, position, shopId, ownerId, subtotal, status, createdAt, updatedAt)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			so.ID, order.ID, i, so.ShopID, so.OwnerID, so.Subtotal, string(so.Status),
			dbTime(so.CreatedAt), dbTime(so.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting shop order: %w", err)
		}

		for _, item := range so.Items {
			if _, err := r.items.Insert(ctx, tx, so.ID, item); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing order insert: %w", err)
	}
	return nil
}

func (r *MySQLOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	orders, err := r.loadOrders(ctx, `o.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", id))
	}
	return orders[0], nil
}

func (r *MySQLOrderRepository) FindByShopOrderID(ctx context.Context, shopOrderID string) (*domain.Order, error) {
	orders, err := r.loadOrders(ctx, `o.id = (SELECT orderId FROM ShopOrders WHERE id = ?)`, shopOrderID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("shop order with id %s not found", shopOrderID))
	}
	return orders[0], nil
}

func (r *MySQLOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	return r.loadOrders(ctx, `o.customerId = ?`, customerID)
}

func (r *MySQLOrderRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error) {
	return r.loadOrders(ctx, `o.id IN (SELECT orderId FROM ShopOrders WHERE ownerId = ?)`, ownerID)
}

func (r *MySQLOrderRepository) ListByCourier(ctx context.Context, courierID string) ([]*domain.Order, error) {
	return r.loadOrders(ctx, `o.id IN (SELECT orderId FROM ShopOrders WHERE assignedDeliveryBoyId = ?)`, courierID)
}

func (r *MySQLOrderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return r.loadOrders(ctx, `1 = 1`)
}

// UpdateShopOrder writes next only while the row still holds prev's status
// and OTP. A stale read surfaces as InvalidTransitionError.
func (r *MySQLOrderRepository) UpdateShopOrder(ctx context.Context, prev, next *domain.ShopOrder) error {
	var receiptNumber sql.NullString
	var receiptIssuedAt sql.NullTime
	if next.Receipt != nil {
		receiptNumber = nullString(next.Receipt.Number)
		receiptIssuedAt = nullTime(&next.Receipt.IssuedAt)
	}

	updatedAt := next.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		UPDATE ShopOrders
		SET status = ?, deliveryOtp = ?, otpExpiresAt = ?, deliveredAt = ?,
		    receiptNumber = ?, receiptIssuedAt = ?, updatedAt = ?
		WHERE id = ? AND status = ? AND deliveryOtp <=> ? AND otpExpiresAt <=> ?
	`
	result, err := r.db.ExecContext(ctx, query,
		string(next.Status), nullString(next.DeliveryOtp), nullTime(next.OtpExpiresAt), nullTime(next.DeliveredAt),
		receiptNumber, receiptIssuedAt, dbTime(updatedAt),
		prev.ID, string(prev.Status), nullString(prev.DeliveryOtp), nullTime(prev.OtpExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("updating shop order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		exists, err := r.shopOrderExists(ctx, prev.ID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.NewNotFoundError(fmt.Sprintf("shop order with id %s not found", prev.ID))
		}
		return errors.NewInvalidTransitionError("shop order was modified concurrently", string(prev.Status), string(next.Status))
	}

	return nil
}

// CancelOrder cancels every shop order and the order itself, or nothing.
func (r *MySQLOrderRepository) CancelOrder(ctx context.Context, orderID, reason string, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var isCancelled bool
	err = tx.QueryRowContext(ctx, `SELECT isCancelled FROM Orders WHERE id = ? FOR UPDATE`, orderID).Scan(&isCancelled)
	if err == sql.ErrNoRows {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", orderID))
	}
	if err != nil {
		return fmt.Errorf("locking order: %w", err)
	}
	if isCancelled {
		return errors.NewInvalidStateError("order is already cancelled")
	}

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ShopOrders WHERE orderId = ?`, orderID).Scan(&total); err != nil {
		return fmt.Errorf("counting shop orders: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE ShopOrders SET status = ?, updatedAt = ? WHERE orderId = ? AND status = ?`,
		string(domain.StatusCancelled), dbTime(at), orderID, string(domain.StatusPending),
	)
	if err != nil {
		return fmt.Errorf("cancelling shop orders: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected != int64(total) {
		return errors.NewInvalidStateError("order can only be cancelled while every shop order is pending")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE Orders SET isCancelled = 1, cancelReason = ?, updatedAt = ? WHERE id = ?`,
		reason, dbTime(at), orderID,
	)
	if err != nil {
		return fmt.Errorf("cancelling order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cancellation: %w", err)
	}
	return nil
}

func (r *MySQLOrderRepository) UpdateSpecialInstructions(ctx context.Context, orderID, text string, at time.Time) error {
	query := `
		UPDATE Orders o
		SET o.specialInstructions = ?, o.updatedAt = ?
		WHERE o.id = ? AND o.isCancelled = 0
		  AND NOT EXISTS (
		      SELECT 1 FROM ShopOrders so
		      WHERE so.orderId = o.id AND so.status NOT IN (?, ?, ?, ?)
		  )
		  AND EXISTS (
		      SELECT 1 FROM ShopOrders live
		      WHERE live.orderId = o.id AND live.status IN (?, ?, ?)
		  )
	`
	result, err := r.db.ExecContext(ctx, query,
		text, dbTime(at), orderID,
		string(domain.StatusPending), string(domain.StatusConfirmed), string(domain.StatusPreparing), string(domain.StatusRejected),
		string(domain.StatusPending), string(domain.StatusConfirmed), string(domain.StatusPreparing),
	)
	if err != nil {
		return fmt.Errorf("updating special instructions: %w", err)
	}
	return r.requireOrderRow(ctx, result, orderID, "special instructions can no longer be changed")
}

// ConfirmPayment is idempotent for online orders.
func (r *MySQLOrderRepository) ConfirmPayment(ctx context.Context, orderID string, at time.Time) error {
	query := `
		UPDATE Orders
		SET paymentConfirmed = 1, updatedAt = ?
		WHERE id = ? AND paymentMethod = ? AND isCancelled = 0
	`
	result, err := r.db.ExecContext(ctx, query, dbTime(at), orderID, string(domain.PaymentOnline))
	if err != nil {
		return fmt.Errorf("confirming payment: %w", err)
	}
	return r.requireOrderRow(ctx, result, orderID, "payment can only be confirmed for live online orders")
}

func (r *MySQLOrderRepository) HideForCustomer(ctx context.Context, orderID string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE Orders SET hiddenForCustomer = 1 WHERE id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("hiding order for customer: %w", err)
	}
	return requireRows(result, fmt.Sprintf("order with id %s not found", orderID))
}

func (r *MySQLOrderRepository) HideShopOrdersForOwner(ctx context.Context, orderID, ownerID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE ShopOrders SET hiddenForOwner = 1 WHERE orderId = ? AND ownerId = ?`, orderID, ownerID)
	if err != nil {
		return fmt.Errorf("hiding shop orders for owner: %w", err)
	}
	return requireRows(result, fmt.Sprintf("no shop orders of order %s for owner %s", orderID, ownerID))
}

func (r *MySQLOrderRepository) HideShopOrdersForCourier(ctx context.Context, orderID, courierID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE ShopOrders SET hiddenForCourier = 1 WHERE orderId = ? AND assignedDeliveryBoyId = ?`, orderID, courierID)
	if err != nil {
		return fmt.Errorf("hiding shop orders for courier: %w", err)
	}
	return requireRows(result, fmt.Sprintf("no shop orders of order %s for courier %s", orderID, courierID))
}

// ListExpiredOtps finds out-for-delivery shop orders whose code expired before now.
func (r *MySQLOrderRepository) ListExpiredOtps(ctx context.Context, now time.Time) ([]domain.ShopOrderRef, error) {
	query := `
		SELECT orderId, id
		FROM ShopOrders
		WHERE status = ? AND otpExpiresAt IS NOT NULL AND otpExpiresAt < ?
		ORDER BY otpExpiresAt
	`
	rows, err := r.db.QueryContext(ctx, query, string(domain.StatusOutOfDelivery), dbTime(now))
	if err != nil {
		return nil, fmt.Errorf("querying expired otps: %w", err)
	}
	defer rows.Close()

	var refs []domain.ShopOrderRef
	for rows.Next() {
		var ref domain.ShopOrderRef
		if err := rows.Scan(&ref.OrderID, &ref.ShopOrderID); err != nil {
			return nil, fmt.Errorf("scanning expired otp row: %w", err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expired otp rows: %w", err)
	}

	return refs, nil
}

func (r *MySQLOrderRepository) shopOrderExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ShopOrders WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("checking shop order: %w", err)
	}
	return n > 0, nil
}

// requireOrderRow tells a missing order apart from a failed precondition.
func (r *MySQLOrderRepository) requireOrderRow(ctx context.Context, result sql.Result, orderID, stateMsg string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Orders WHERE id = ?`, orderID).Scan(&n); err != nil {
		return fmt.Errorf("checking order: %w", err)
	}
	if n == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("order with id %s not found", orderID))
	}
	return errors.NewInvalidStateError(stateMsg)
}

func requireRows(result sql.Result, notFoundMsg string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFoundError(notFoundMsg)
	}
	return nil
}

func (r *MySQLOrderRepository) loadOrders(ctx context.Context, where string, args ...interface{}) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM Orders o WHERE ` + where + ` ORDER BY o.createdAt DESC, o.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order rows: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}

	shopOrders, err := r.loadShopOrders(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.ShopOrders = shopOrders[o.ID]
	}

	return orders, nil
}

func scanOrder(rows *sql.Rows) (*domain.Order, error) {
	var o domain.Order
	var address sql.NullString
	var lat, lng sql.NullFloat64
	var paymentMethod string

	err := rows.Scan(
		&o.ID, &o.CustomerID, &o.CustomerEmail, &address, &lat, &lng,
		&paymentMethod, &o.PaymentConfirmed, &o.IsCancelled, &o.CancelReason, &o.SpecialInstructions,
		&o.TotalAmount, &o.HiddenForCustomer, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning order row: %w", err)
	}

	o.PaymentMethod = domain.PaymentMethod(paymentMethod)
	if address.Valid {
		o.DeliveryAddress = &domain.Address{Text: address.String}
		if lat.Valid {
			o.DeliveryAddress.Latitude = &lat.Float64
		}
		if lng.Valid {
			o.DeliveryAddress.Longitude = &lng.Float64
		}
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()

	return &o, nil
}

func (r *MySQLOrderRepository) loadShopOrders(ctx context.Context, orderIDs []string) (map[string][]domain.ShopOrder, error) {
	placeholders, args := inClause(orderIDs)
	query := `SELECT ` + shopOrderColumns + ` FROM ShopOrders WHERE orderId IN (` + placeholders + `) ORDER BY orderId, position`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying shop orders: %w", err)
	}
	defer rows.Close()

	type receiptRow struct {
		number   sql.NullString
		issuedAt sql.NullTime
	}

	var shopOrders []domain.ShopOrder
	var receipts []receiptRow
	var ids []string
	for rows.Next() {
		var so domain.ShopOrder
		var status string
		var assigned, otp sql.NullString
		var assignedAt, otpExpiresAt, deliveredAt sql.NullTime
		var rr receiptRow

		err := rows.Scan(
			&so.ID, &so.OrderID, &so.ShopID, &so.OwnerID, &so.Subtotal, &status, &assigned, &assignedAt,
			&otp, &otpExpiresAt, &deliveredAt, &rr.number, &rr.issuedAt,
			&so.HiddenForOwner, &so.HiddenForCourier, &so.CreatedAt, &so.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning shop order row: %w", err)
		}

		so.Status = domain.ShopOrderStatus(status)
		so.AssignedDeliveryBoyID = assigned.String
		so.AssignedAt = timePtr(assignedAt)
		so.DeliveryOtp = otp.String
		so.OtpExpiresAt = timePtr(otpExpiresAt)
		so.DeliveredAt = timePtr(deliveredAt)
		so.CreatedAt = so.CreatedAt.UTC()
		so.UpdatedAt = so.UpdatedAt.UTC()

		shopOrders = append(shopOrders, so)
		receipts = append(receipts, rr)
		ids = append(ids, so.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating shop order rows: %w", err)
	}

	items, err := r.items.FindByShopOrderIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byOrder := make(map[string][]domain.ShopOrder, len(orderIDs))
	for i, so := range shopOrders {
		so.Items = items[so.ID]
		if rr := receipts[i]; rr.number.Valid {
			so.Receipt = &domain.Receipt{
				Number:   rr.number.String,
				IssuedAt: rr.issuedAt.Time.UTC(),
				Items:    append([]domain.Item(nil), so.Items...),
				Subtotal: so.Subtotal,
			}
		}
		byOrder[so.OrderID] = append(byOrder[so.OrderID], so)
	}

	return byOrder, nil
}
