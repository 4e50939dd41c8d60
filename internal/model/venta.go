package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	EstadoVentaFinalizada = "finalizada"
	EstadoVentaAnulada    = "anulada"
)

const (
	DocumentoBoleta  = "BOLETA"
	DocumentoFactura = "FACTURA"
)

// Medios de pago.
const (
	MetodoEfectivo      = "CASH"
	MetodoDebito        = "DEBIT"
	MetodoCredito       = "CREDIT"
	MetodoTransferencia = "TRANSFER"
)

// MetodosPago lists every accepted payment method.
var MetodosPago = []string{MetodoEfectivo, MetodoDebito, MetodoCredito, MetodoTransferencia}

func MetodoValido(m string) bool {
	for _, v := range MetodosPago {
		if v == m {
			return true
		}
	}
	return false
}

// Venta is a settled sale. Montos en pesos enteros.
// TotalCobrado = Total + AjusteRedondeo.
type Venta struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Folio          string    `gorm:"type:varchar(40);not null;uniqueIndex"`
	NumeroVenta    int64     `gorm:"not null;uniqueIndex:idx_ventas_sesion_numero,priority:2"`
	SesionCajaID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ventas_sesion_numero,priority:1"`
	SucursalID     uuid.UUID `gorm:"type:uuid;not null;index"`
	CajaID         uuid.UUID `gorm:"type:uuid;not null"`
	UsuarioID      uuid.UUID `gorm:"type:uuid;not null"`
	Total          int64     `gorm:"not null"`
	AjusteRedondeo int64     `gorm:"not null;default:0"`
	TotalCobrado   int64     `gorm:"not null"`
	TipoDocumento  string    `gorm:"type:varchar(10);not null"`
	Estado         string    `gorm:"type:varchar(20);not null"`
	CreatedAt      time.Time `gorm:"not null"`

	Items []VentaItem `gorm:"foreignKey:VentaID"`
	Pagos []Pago      `gorm:"foreignKey:VentaID"`
}

func (Venta) TableName() string { return "ventas" }

type VentaItem struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID        uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductoID     uuid.UUID `gorm:"type:uuid;not null"`
	Cantidad       int64     `gorm:"not null"`
	PrecioUnitario int64     `gorm:"not null"`
	Subtotal       int64     `gorm:"not null"`
}

func (VentaItem) TableName() string { return "venta_items" }

// Pago is one tender of a sale. SesionCajaID is denormalized so the
// register summary can aggregate without joining ventas.
type Pago struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID      uuid.UUID `gorm:"type:uuid;not null;index"`
	SesionCajaID uuid.UUID `gorm:"type:uuid;not null;index"`
	SucursalID   uuid.UUID `gorm:"type:uuid;not null"`
	Metodo       string    `gorm:"type:varchar(20);not null"`
	Monto        int64     `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (Pago) TableName() string { return "pagos" }
