package repository

import (
	"context"

	"bersapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const idxSesionAbierta = "idx_sesiones_caja_una_abierta"

type CajaRepository interface {
	FindCaja(ctx context.Context, id uuid.UUID) (*model.Caja, error)
	CreateCaja(ctx context.Context, c *model.Caja) error
	// CreateSesion returns ErrSesionAbiertaDuplicada when the caja already has an abierta session.
	CreateSesion(ctx context.Context, s *model.SesionCaja) error
	FindSesionAbierta(ctx context.Context, cajaID uuid.UUID) (*model.SesionCaja, error)
	FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	// LockSesion reads the session and holds a row lock until the enclosing
	// transaction ends. Settlement and close both take it, so they serialize.
	LockSesion(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	// CerrarSesion persists the close fields; ErrSesionNoAbierta if it was already closed.
	CerrarSesion(ctx context.Context, s *model.SesionCaja) error
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) FindCaja(ctx context.Context, id uuid.UUID) (*model.Caja, error) {
	var c model.Caja
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *cajaRepo) CreateCaja(ctx context.Context, c *model.Caja) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *cajaRepo) CreateSesion(ctx context.Context, s *model.SesionCaja) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if isUniqueViolation(err, idxSesionAbierta) {
		return ErrSesionAbiertaDuplicada
	}
	return err
}

func (r *cajaRepo) FindSesionAbierta(ctx context.Context, cajaID uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("caja_id = ? AND estado = ?", cajaID, model.EstadoSesionAbierta).
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *cajaRepo) FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *cajaRepo) LockSesion(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *cajaRepo) CerrarSesion(ctx context.Context, s *model.SesionCaja) error {
	res := r.db.WithContext(ctx).Model(&model.SesionCaja{}).
		Where("id = ? AND estado = ?", s.ID, model.EstadoSesionAbierta).
		Updates(map[string]interface{}{
			"estado":                   model.EstadoSesionCerrada,
			"cerrada_por":              s.CerradaPor,
			"closed_at":                s.ClosedAt,
			"monto_esperado":           s.MontoEsperado,
			"monto_declarado":          s.MontoDeclarado,
			"diferencia":               s.Diferencia,
			"diferencia_pct":           s.DiferenciaPct,
			"clasificacion_diferencia": s.ClasificacionDiferencia,
			"motivo_diferencia":        s.MotivoDiferencia,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSesionNoAbierta
	}
	s.Estado = model.EstadoSesionCerrada
	return nil
}
