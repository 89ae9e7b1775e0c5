package infra

import (
	"fmt"

	"vendapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens a GORM connection backed by pgx and brings the schema up
// to date: AutoMigrate for tables and columns, then idempotent SQL patches for
// what GORM cannot express (partial unique indexes).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table and applies the schema patches.
// NewDatabase calls it on every start.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.Order{},
		&model.OrderStatusEvent{},
		&model.Table{},
		&model.TableSession{},
		&model.SaleItem{},
		&model.ItemComplement{},
		&model.Tender{},
		&model.CashRegisterSession{},
		&model.CashMovement{},
		&model.CashbackAccount{},
		&model.CashbackTransaction{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot handle.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// one open sale per table; a lost OpenTable race fails here
		{"idx_table_sessions_open", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_table_sessions_open
    ON table_sessions (table_id)
    WHERE status = 'open'`},
		// one open register per station
		{"idx_cash_register_open", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_cash_register_open
    ON cash_register_sessions (station)
    WHERE status = 'open'`},
		// orphan reconciliation scans unlinked orders only
		{"idx_orders_orphan", `
CREATE INDEX IF NOT EXISTS idx_orders_orphan
    ON orders (created_at)
    WHERE cash_register_id IS NULL`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
