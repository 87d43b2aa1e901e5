package database

import (
	"gorm.io/gorm"
)

// EnableExtensions installs the extensions the schema defaults rely on
func EnableExtensions(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error
}

// MigrateConstraints adds indexes not expressible as gorm tags
func MigrateConstraints(db *gorm.DB) error {
	// one line per item in an order
	err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_order_lines_order_kind_item
		ON order_lines (order_id, kind, item_id);
	`).Error
	if err != nil {
		return err
	}

	// recent orders for a session
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_orders_session_created
		ON orders (session_id, created_at DESC);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
