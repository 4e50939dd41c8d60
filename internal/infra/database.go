package infra

import (
	"fmt"
	"time"

	"bersapos/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and migrates the
// schema: AutoMigrate for tables and plain indexes, then idempotent SQL
// patches for what GORM cannot express (partial indexes, CHECK constraints).
func NewDatabase(dsn string, maxOpen, maxIdle int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every table this service owns.
// Exposed so integration tests can migrate a throwaway database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Sucursal{},
		&model.Caja{},
		&model.SesionCaja{},
		&model.StockSucursal{},
		&model.MovimientoStock{},
		&model.Venta{},
		&model.VentaItem{},
		&model.Pago{},
		&model.Contador{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs DDL that AutoMigrate cannot express. Every
// statement is guarded so re-running on a patched schema is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// at most one abierta session per caja
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sesiones_caja_una_abierta
		    ON sesiones_caja (caja_id) WHERE estado = 'abierta'`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_sesiones_caja_monto_inicial') THEN
		    ALTER TABLE sesiones_caja ADD CONSTRAINT chk_sesiones_caja_monto_inicial CHECK (monto_inicial >= 0);
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_movimientos_stock_cantidad') THEN
		    ALTER TABLE movimientos_stock ADD CONSTRAINT chk_movimientos_stock_cantidad CHECK (cantidad > 0);
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_movimientos_stock_direccion') THEN
		    ALTER TABLE movimientos_stock ADD CONSTRAINT chk_movimientos_stock_direccion CHECK (direccion IN ('IN', 'OUT'));
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_pagos_monto') THEN
		    ALTER TABLE pagos ADD CONSTRAINT chk_pagos_monto CHECK (monto > 0);
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_venta_items_cantidad') THEN
		    ALTER TABLE venta_items ADD CONSTRAINT chk_venta_items_cantidad CHECK (cantidad > 0);
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
