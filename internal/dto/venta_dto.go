package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemVentaRequest struct {
	ProductoID     string `json:"producto_id"     validate:"required,uuid"`
	Cantidad       int64  `json:"cantidad"        validate:"required,gt=0"`
	PrecioUnitario int64  `json:"precio_unitario" validate:"min=0"`
}

type PagoRequest struct {
	Metodo string `json:"metodo" validate:"required,oneof=CASH DEBIT CREDIT TRANSFER"`
	Monto  int64  `json:"monto"  validate:"required,gt=0"`
}

// RegistrarVentaRequest: empty Items is reported by the service as EMPTY_SALE,
// so the validator does not enforce a minimum here.
type RegistrarVentaRequest struct {
	CajaID        string             `json:"caja_id"        validate:"required,uuid"`
	SesionCajaID  string             `json:"sesion_caja_id" validate:"required,uuid"`
	Items         []ItemVentaRequest `json:"items"          validate:"dive"`
	Pagos         []PagoRequest      `json:"pagos"          validate:"dive"`
	TipoDocumento string             `json:"tipo_documento" validate:"omitempty,oneof=BOLETA FACTURA"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemVentaResponse struct {
	ProductoID     string `json:"producto_id"`
	Cantidad       int64  `json:"cantidad"`
	PrecioUnitario int64  `json:"precio_unitario"`
	Subtotal       int64  `json:"subtotal"`
}

type PagoResponse struct {
	Metodo string `json:"metodo"`
	Monto  int64  `json:"monto"`
}

type VentaResponse struct {
	ID             string              `json:"id"`
	Folio          string              `json:"folio"`
	NumeroVenta    int64               `json:"numero_venta"`
	SucursalID     string              `json:"sucursal_id"`
	CajaID         string              `json:"caja_id"`
	SesionCajaID   string              `json:"sesion_caja_id"`
	UsuarioID      string              `json:"usuario_id"`
	TipoDocumento  string              `json:"tipo_documento"`
	Estado         string              `json:"estado"`
	Items          []ItemVentaResponse `json:"items"`
	Total          int64               `json:"total"`
	AjusteRedondeo int64               `json:"ajuste_redondeo"`
	TotalCobrado   int64               `json:"total_cobrado"`
	Pagos          []PagoResponse      `json:"pagos"`
	CreatedAt      string              `json:"created_at"`
}
