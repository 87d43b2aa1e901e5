package database

import (
	"upsell/internal/orders"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := EnableExtensions(db); err != nil {
		return err
	}
	if err := db.AutoMigrate(
		&orders.Order{},
		&orders.OrderLine{},
	); err != nil {
		return err
	}
	return MigrateConstraints(db)
}
