package model

import (
	"time"

	"github.com/google/uuid"
)

// Sucursal is a branch. Codigo prefixes every folio issued there.
type Sucursal struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre    string    `gorm:"type:varchar(120);not null"`
	Codigo    string    `gorm:"type:varchar(10)"`
	Activa    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
}

func (Sucursal) TableName() string { return "sucursales" }

// Contador is a named monotonic counter. Keys look like "venta:<sesion>" or
// "folio:<sucursal>:<yyyymmdd>".
type Contador struct {
	Clave  string `gorm:"type:varchar(120);primaryKey"`
	Ultimo int64  `gorm:"not null;default:0"`
}

func (Contador) TableName() string { return "contadores" }
