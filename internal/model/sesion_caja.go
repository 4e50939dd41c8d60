package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EstadoSesionAbierta = "abierta"
	EstadoSesionCerrada = "cerrada"
)

// Caja is a physical register belonging to one branch. Master data; this
// service only reads it.
type Caja struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SucursalID uuid.UUID `gorm:"type:uuid;not null;index"`
	Nombre     string    `gorm:"type:varchar(60);not null"`
	Activa     bool      `gorm:"not null;default:true"`
	CreatedAt  time.Time
}

func (Caja) TableName() string { return "cajas" }

// SesionCaja represents the lifecycle of a cash register session.
// Estado: "abierta" | "cerrada". At most one abierta row per caja, enforced
// by the partial unique index idx_sesiones_caja_una_abierta.
type SesionCaja struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CajaID       uuid.UUID `gorm:"type:uuid;not null;index"`
	SucursalID   uuid.UUID `gorm:"type:uuid;not null;index"`
	AbiertaPor   uuid.UUID `gorm:"type:uuid;not null"`
	MontoInicial int64     `gorm:"not null"`
	Estado       string    `gorm:"type:varchar(20);not null;default:'abierta'"`
	OpenedAt     time.Time `gorm:"not null"`

	// Set once on close.
	CerradaPor     *uuid.UUID `gorm:"type:uuid"`
	ClosedAt       *time.Time
	MontoEsperado  *int64
	MontoDeclarado *int64
	Diferencia     *int64
	DiferenciaPct  *decimal.Decimal `gorm:"type:decimal(7,2)"`
	// ClasificacionDiferencia: "normal" | "advertencia" | "critico"
	ClasificacionDiferencia *string `gorm:"type:varchar(20)"`
	MotivoDiferencia        *string `gorm:"type:varchar(500)"`
}

func (SesionCaja) TableName() string { return "sesiones_caja" }

func (s *SesionCaja) Abierta() bool { return s.Estado == EstadoSesionAbierta }
