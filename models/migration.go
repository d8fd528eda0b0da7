package models

import "github.com/screenbites/canteen_backend/config"

// MigrateTable creates or updates every table the engine owns.
func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Theater{},
		&Product{},
		&ComboOffer{},
		&ComboOfferItem{},
		&CafeMonthlyLedger{},
		&CafeStockEntry{},
		&TheaterMonthlyLedger{},
		&TheaterStockEntry{},
		&Order{},
		&OrderItem{},
		&OrderEventRecord{},
	)
}
