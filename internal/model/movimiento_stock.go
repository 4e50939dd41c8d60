package model

import (
	"time"

	"github.com/google/uuid"
)

// Direccion of a ledger entry.
type Direccion string

const (
	DireccionIn  Direccion = "IN"
	DireccionOut Direccion = "OUT"
)

// MotivoMovimiento is the reason code of a ledger entry. Each code implies
// exactly one direction.
type MotivoMovimiento string

const (
	MotivoCompra           MotivoMovimiento = "PURCHASE_RECEIPT"
	MotivoTransferenciaIn  MotivoMovimiento = "TRANSFER_IN"
	MotivoAjustePositivo   MotivoMovimiento = "ADJUSTMENT_POSITIVE"
	MotivoReposicionVenta  MotivoMovimiento = "SALE_VOID_RESTOCK"
	MotivoVenta            MotivoMovimiento = "SALE"
	MotivoTransferenciaOut MotivoMovimiento = "TRANSFER_OUT"
	MotivoAjusteNegativo   MotivoMovimiento = "ADJUSTMENT_NEGATIVE"
)

var direccionPorMotivo = map[MotivoMovimiento]Direccion{
	MotivoCompra:           DireccionIn,
	MotivoTransferenciaIn:  DireccionIn,
	MotivoAjustePositivo:   DireccionIn,
	MotivoReposicionVenta:  DireccionIn,
	MotivoVenta:            DireccionOut,
	MotivoTransferenciaOut: DireccionOut,
	MotivoAjusteNegativo:   DireccionOut,
}

// Direccion returns the direction implied by m; false for unknown codes.
func (m MotivoMovimiento) Direccion() (Direccion, bool) {
	d, ok := direccionPorMotivo[m]
	return d, ok
}

// Tipos de referencia de un movimiento.
const (
	ReferenciaVenta         = "VENTA"
	ReferenciaTransferencia = "TRANSFERENCIA"
	ReferenciaAjuste        = "AJUSTE"
	ReferenciaCompra        = "COMPRA"
	ReferenciaAnulacion     = "ANULACION"
)

// StockSucursal is the current balance of one product at one branch.
// Version increments on every posted movement and equals the Secuencia of
// the latest entry for the pair.
type StockSucursal struct {
	ProductoID uuid.UUID `gorm:"type:uuid;primaryKey"`
	SucursalID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Cantidad   int64     `gorm:"not null;default:0"`
	Habilitado bool      `gorm:"not null;default:true"`
	Version    int64     `gorm:"not null;default:0"`
	UpdatedAt  time.Time
}

func (StockSucursal) TableName() string { return "stock_sucursal" }

// MovimientoStock registra cada cambio de stock de un producto en una sucursal.
// Append-only: los movimientos nunca se modifican ni se borran.
// For a given (producto, sucursal) the entries form a chain: Secuencia is
// contiguous from 1 and each SaldoAnterior equals the previous SaldoPosterior.
type MovimientoStock struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductoID     uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_movimientos_stock_cadena,priority:1"`
	SucursalID     uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_movimientos_stock_cadena,priority:2"`
	Secuencia      int64            `gorm:"not null;uniqueIndex:idx_movimientos_stock_cadena,priority:3"`
	Direccion      Direccion        `gorm:"type:varchar(3);not null"`
	Motivo         MotivoMovimiento `gorm:"type:varchar(30);not null"`
	Cantidad       int64            `gorm:"not null"` // siempre positiva
	SaldoAnterior  int64            `gorm:"not null"`
	SaldoPosterior int64            `gorm:"not null"`
	ReferenciaTipo *string          `gorm:"type:varchar(20)"`
	ReferenciaID   *uuid.UUID       `gorm:"type:uuid;index"`
	Observacion    *string          `gorm:"type:varchar(500)"`
	UsuarioID      *uuid.UUID       `gorm:"type:uuid"`
	CreatedAt      time.Time        `gorm:"not null;index"`
}

// TableName overrides GORM's default pluralization (movimiento_stocks → movimientos_stock).
func (MovimientoStock) TableName() string { return "movimientos_stock" }
