package repository

import (
	"context"
	"time"

	"bersapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockRepository interface {
	FindStock(ctx context.Context, productoID, sucursalID uuid.UUID) (*model.StockSucursal, error)
	// LockStock reads the balance row FOR UPDATE; only meaningful inside WithinTx.
	LockStock(ctx context.Context, productoID, sucursalID uuid.UUID) (*model.StockSucursal, error)
	// AplicarMovimiento moves the balance from st.Version to st.Version+1 and
	// appends mov with Secuencia = st.Version+1. Returns ErrConflictoConcurrente
	// if the row no longer has st.Version. On success st reflects the new state.
	AplicarMovimiento(ctx context.Context, st *model.StockSucursal, mov *model.MovimientoStock) error
	// ListMovimientos returns the kardex ordered by Secuencia ascending.
	ListMovimientos(ctx context.Context, productoID, sucursalID uuid.UUID, limit int) ([]model.MovimientoStock, error)
	// Provisionar creates a zero balance for the pair if none exists.
	Provisionar(ctx context.Context, productoID, sucursalID uuid.UUID) error
	SetHabilitado(ctx context.Context, productoID, sucursalID uuid.UUID, habilitado bool) error
}

type stockRepo struct{ db *gorm.DB }

func NewStockRepository(db *gorm.DB) StockRepository { return &stockRepo{db: db} }

func (r *stockRepo) FindStock(ctx context.Context, productoID, sucursalID uuid.UUID) (*model.StockSucursal, error) {
	var st model.StockSucursal
	err := r.db.WithContext(ctx).
		Where("producto_id = ? AND sucursal_id = ?", productoID, sucursalID).
		Take(&st).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (r *stockRepo) LockStock(ctx context.Context, productoID, sucursalID uuid.UUID) (*model.StockSucursal, error) {
	var st model.StockSucursal
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("producto_id = ? AND sucursal_id = ?", productoID, sucursalID).
		Take(&st).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (r *stockRepo) AplicarMovimiento(ctx context.Context, st *model.StockSucursal, mov *model.MovimientoStock) error {
	now := time.Now().UTC()
	next := st.Version + 1
	res := r.db.WithContext(ctx).Model(&model.StockSucursal{}).
		Where("producto_id = ? AND sucursal_id = ? AND version = ?", st.ProductoID, st.SucursalID, st.Version).
		Updates(map[string]interface{}{
			"cantidad":   mov.SaldoPosterior,
			"version":    next,
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return ErrConflictoConcurrente
	}

	mov.Secuencia = next
	if err := r.db.WithContext(ctx).Create(mov).Error; err != nil {
		if isUniqueViolation(err, "idx_movimientos_stock_cadena") {
			return ErrConflictoConcurrente
		}
		return err
	}
	st.Cantidad = mov.SaldoPosterior
	st.Version = next
	st.UpdatedAt = now
	return nil
}

func (r *stockRepo) ListMovimientos(ctx context.Context, productoID, sucursalID uuid.UUID, limit int) ([]model.MovimientoStock, error) {
	var movs []model.MovimientoStock
	q := r.db.WithContext(ctx).
		Where("producto_id = ? AND sucursal_id = ?", productoID, sucursalID).
		Order("secuencia ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&movs).Error
	return movs, err
}

func (r *stockRepo) Provisionar(ctx context.Context, productoID, sucursalID uuid.UUID) error {
	row := model.StockSucursal{
		ProductoID: productoID,
		SucursalID: sucursalID,
		Habilitado: true,
		UpdatedAt:  time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (r *stockRepo) SetHabilitado(ctx context.Context, productoID, sucursalID uuid.UUID, habilitado bool) error {
	res := r.db.WithContext(ctx).Model(&model.StockSucursal{}).
		Where("producto_id = ? AND sucursal_id = ?", productoID, sucursalID).
		Update("habilitado", habilitado)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
