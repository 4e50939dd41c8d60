package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ReferenciaRequest struct {
	Tipo string `json:"tipo" validate:"required,oneof=VENTA TRANSFERENCIA AJUSTE COMPRA ANULACION"`
	ID   string `json:"id"   validate:"required,uuid"`
}

type RegistrarMovimientoRequest struct {
	ProductoID string `json:"producto_id" validate:"required,uuid"`
	SucursalID string `json:"sucursal_id" validate:"required,uuid"`
	// Direccion is optional; when present it must match the one implied by Motivo.
	Direccion   string             `json:"direccion"   validate:"omitempty,oneof=IN OUT"`
	Motivo      string             `json:"motivo"      validate:"required"`
	Cantidad    int64              `json:"cantidad"    validate:"required,gt=0"`
	Referencia  *ReferenciaRequest `json:"referencia"`
	Observacion *string            `json:"observacion" validate:"omitempty,max=500"`
}

// KardexFilter is bound from the query string of GET /v1/inventario/kardex.
type KardexFilter struct {
	ProductoID string `form:"producto_id"       validate:"required,uuid"`
	SucursalID string `form:"sucursal_id"       validate:"required,uuid"`
	Limit      int    `form:"limit,default=100" validate:"min=1,max=1000"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type MovimientoStockResponse struct {
	ID             string  `json:"id"`
	ProductoID     string  `json:"producto_id"`
	SucursalID     string  `json:"sucursal_id"`
	Secuencia      int64   `json:"secuencia"`
	Direccion      string  `json:"direccion"`
	Motivo         string  `json:"motivo"`
	Cantidad       int64   `json:"cantidad"`
	SaldoAnterior  int64   `json:"saldo_anterior"`
	SaldoPosterior int64   `json:"saldo_posterior"`
	ReferenciaTipo *string `json:"referencia_tipo,omitempty"`
	ReferenciaID   *string `json:"referencia_id,omitempty"`
	Observacion    *string `json:"observacion,omitempty"`
	CreatedAt      string  `json:"created_at"`
}
