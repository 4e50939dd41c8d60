package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	CajaID string `json:"caja_id" validate:"required,uuid"`
	// SucursalID defaults to the caller's branch.
	SucursalID   string `json:"sucursal_id"   validate:"omitempty,uuid"`
	MontoInicial int64  `json:"monto_inicial" validate:"min=0"`
}

type CerrarCajaRequest struct {
	CajaID           string  `json:"caja_id"           validate:"required,uuid"`
	MontoDeclarado   int64   `json:"monto_declarado"   validate:"min=0"`
	MotivoDiferencia *string `json:"motivo_diferencia" validate:"omitempty,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SesionCajaResponse struct {
	ID           string  `json:"id"`
	CajaID       string  `json:"caja_id"`
	SucursalID   string  `json:"sucursal_id"`
	AbiertaPor   string  `json:"abierta_por"`
	MontoInicial int64   `json:"monto_inicial"`
	Estado       string  `json:"estado"`
	OpenedAt     string  `json:"opened_at"`
	ClosedAt     *string `json:"closed_at,omitempty"`
}

type ResumenCajaResponse struct {
	SesionCajaID   string           `json:"sesion_caja_id"`
	CajaID         string           `json:"caja_id"`
	MontoInicial   int64            `json:"monto_inicial"`
	CantidadVentas int64            `json:"cantidad_ventas"`
	TotalVentas    int64            `json:"total_ventas"`
	PagosPorMetodo map[string]int64 `json:"pagos_por_metodo"`
	// EfectivoEsperado = MontoInicial + PagosPorMetodo["CASH"]
	EfectivoEsperado int64 `json:"efectivo_esperado"`
}

type DiferenciaResponse struct {
	Monto         int64           `json:"monto"`
	Porcentaje    decimal.Decimal `json:"porcentaje"`
	Clasificacion string          `json:"clasificacion"` // normal | advertencia | critico
}

type CierreCajaResponse struct {
	SesionCajaID     string              `json:"sesion_caja_id"`
	Estado           string              `json:"estado"`
	Resumen          ResumenCajaResponse `json:"resumen"`
	MontoDeclarado   int64               `json:"monto_declarado"`
	Diferencia       DiferenciaResponse  `json:"diferencia"`
	MotivoDiferencia *string             `json:"motivo_diferencia,omitempty"`
	CerradaPor       string              `json:"cerrada_por"`
	ClosedAt         string              `json:"closed_at"`
}
