package repository

import (
	"context"

	"bersapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResumenVentas aggregates the finalized sales of one session.
type ResumenVentas struct {
	CantidadVentas int64
	TotalVentas    int64
	PagosPorMetodo map[string]int64
}

type VentaRepository interface {
	// Create persists the sale with its items. Pagos are written separately.
	Create(ctx context.Context, v *model.Venta) error
	CreatePagos(ctx context.Context, pagos []model.Pago) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	ResumenSesion(ctx context.Context, sesionCajaID uuid.UUID) (*ResumenVentas, error)
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) Create(ctx context.Context, v *model.Venta) error {
	return r.db.WithContext(ctx).Omit("Pagos").Create(v).Error
}

func (r *ventaRepo) CreatePagos(ctx context.Context, pagos []model.Pago) error {
	if len(pagos) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&pagos).Error
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items").Preload("Pagos").First(&v, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *ventaRepo) ResumenSesion(ctx context.Context, sesionCajaID uuid.UUID) (*ResumenVentas, error) {
	var totales struct {
		Cantidad int64
		Total    int64
	}
	err := r.db.WithContext(ctx).Model(&model.Venta{}).
		Select("COUNT(*) AS cantidad, COALESCE(SUM(total), 0) AS total").
		Where("sesion_caja_id = ? AND estado = ?", sesionCajaID, model.EstadoVentaFinalizada).
		Scan(&totales).Error
	if err != nil {
		return nil, err
	}

	var filas []struct {
		Metodo string
		Monto  int64
	}
	err = r.db.WithContext(ctx).Table("pagos p").
		Select("p.metodo AS metodo, COALESCE(SUM(p.monto), 0) AS monto").
		Joins("JOIN ventas v ON v.id = p.venta_id").
		Where("p.sesion_caja_id = ? AND v.estado = ?", sesionCajaID, model.EstadoVentaFinalizada).
		Group("p.metodo").
		Scan(&filas).Error
	if err != nil {
		return nil, err
	}

	res := &ResumenVentas{
		CantidadVentas: totales.Cantidad,
		TotalVentas:    totales.Total,
		PagosPorMetodo: make(map[string]int64, len(filas)),
	}
	for _, f := range filas {
		res.PagosPorMetodo[f.Metodo] = f.Monto
	}
	return res, nil
}
