package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

// Tables in dependency order. Timestamps carry microseconds so conditional
// writes can compare them exactly.
var schema = []struct {
	name  string
	query string
}{
	{"Shops", `
	CREATE TABLE IF NOT EXISTS Shops (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		ownerId VARCHAR(36) NOT NULL,
		name VARCHAR(150) NOT NULL,
		INDEX idx_owner (ownerId)
	)`},
	{"Couriers", `
	CREATE TABLE IF NOT EXISTS Couriers (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		fullName VARCHAR(150) NOT NULL,
		email VARCHAR(150) NOT NULL,
		mobile VARCHAR(30) NOT NULL DEFAULT '',
		isApproved TINYINT(1) NOT NULL DEFAULT 0,
		isActive TINYINT(1) NOT NULL DEFAULT 0
	)`},
	{"Orders", `
	CREATE TABLE IF NOT EXISTS Orders (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		customerId VARCHAR(36) NOT NULL,
		customerEmail VARCHAR(150) NOT NULL DEFAULT '',
		deliveryAddress VARCHAR(255) NULL,
		deliveryLat DOUBLE NULL,
		deliveryLng DOUBLE NULL,
		paymentMethod VARCHAR(10) NOT NULL,
		paymentConfirmed TINYINT(1) NOT NULL DEFAULT 0,
		isCancelled TINYINT(1) NOT NULL DEFAULT 0,
		cancelReason VARCHAR(255) NOT NULL DEFAULT '',
		specialInstructions TEXT NOT NULL,
		totalAmount DECIMAL(12,2) NOT NULL,
		hiddenForCustomer TINYINT(1) NOT NULL DEFAULT 0,
		createdAt DATETIME(6) NOT NULL,
		updatedAt DATETIME(6) NOT NULL,
		INDEX idx_customer (customerId)
	)`},
	{"ShopOrders", `
	CREATE TABLE IF NOT EXISTS ShopOrders (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		orderId VARCHAR(36) NOT NULL,
		position INT NOT NULL,
		shopId VARCHAR(36) NOT NULL,
		ownerId VARCHAR(36) NOT NULL,
		subtotal DECIMAL(12,2) NOT NULL,
		status VARCHAR(20) NOT NULL,
		assignedDeliveryBoyId VARCHAR(36) NULL,
		assignedAt DATETIME(6) NULL,
		deliveryOtp VARCHAR(9) NULL,
		otpExpiresAt DATETIME(6) NULL,
		deliveredAt DATETIME(6) NULL,
		receiptNumber VARCHAR(40) NULL,
		receiptIssuedAt DATETIME(6) NULL,
		hiddenForOwner TINYINT(1) NOT NULL DEFAULT 0,
		hiddenForCourier TINYINT(1) NOT NULL DEFAULT 0,
		createdAt DATETIME(6) NOT NULL,
		updatedAt DATETIME(6) NOT NULL,
		FOREIGN KEY (orderId) REFERENCES Orders(id) ON DELETE CASCADE,
		INDEX idx_order (orderId),
		INDEX idx_owner (ownerId),
		INDEX idx_courier_status (assignedDeliveryBoyId, status),
		INDEX idx_status_otp (status, otpExpiresAt)
	)`},
	{"ShopOrderItems", `
	CREATE TABLE IF NOT EXISTS ShopOrderItems (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		shopOrderId VARCHAR(36) NOT NULL,
		itemId VARCHAR(36) NOT NULL,
		name VARCHAR(150) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		quantity INT NOT NULL,
		FOREIGN KEY (shopOrderId) REFERENCES ShopOrders(id) ON DELETE CASCADE,
		INDEX idx_shop_order (shopOrderId)
	)`},
}

// TableNames lists the tables children first, the order they can be emptied in.
func TableNames() []string {
	names := make([]string, 0, len(schema))
	for i := len(schema) - 1; i >= 0; i-- {
		names = append(names, schema[i].name)
	}
	return names
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, tbl := range schema {
		if _, err := db.ExecContext(ctx, tbl.query); err != nil {
			return fmt.Errorf("creating table %s: %w", tbl.name, err)
		}
	}
	return nil
}
