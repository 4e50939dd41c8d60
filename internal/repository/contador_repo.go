package repository

import (
	"context"

	"bersapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContadorRepository interface {
	// Incrementar atomically bumps the counter (creating it at 1) and returns the new value.
	Incrementar(ctx context.Context, clave string) (int64, error)
}

type contadorRepo struct{ db *gorm.DB }

func NewContadorRepository(db *gorm.DB) ContadorRepository { return &contadorRepo{db: db} }

func (r *contadorRepo) Incrementar(ctx context.Context, clave string) (int64, error) {
	var ultimo int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO contadores (clave, ultimo) VALUES (?, 1)
		ON CONFLICT (clave) DO UPDATE SET ultimo = contadores.ultimo + 1
		RETURNING ultimo`, clave).Scan(&ultimo).Error
	return ultimo, err
}

type SucursalRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sucursal, error)
	Create(ctx context.Context, s *model.Sucursal) error
}

type sucursalRepo struct{ db *gorm.DB }

func NewSucursalRepository(db *gorm.DB) SucursalRepository { return &sucursalRepo{db: db} }

func (r *sucursalRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sucursal, error) {
	var s model.Sucursal
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *sucursalRepo) Create(ctx context.Context, s *model.Sucursal) error {
	return r.db.WithContext(ctx).Create(s).Error
}
