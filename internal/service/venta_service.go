package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bersapos/internal/apierror"
	"bersapos/internal/authz"
	"bersapos/internal/dto"
	"bersapos/internal/metrics"
	"bersapos/internal/model"
	"bersapos/internal/notify"
	"bersapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type VentaService interface {
	RegistrarVenta(ctx context.Context, ident authz.Identidad, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error)
	ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error)
}

type ventaService struct {
	store      repository.Store
	inventario InventarioService
	folios     FolioService
	pub        notify.Publisher
}

func NewVentaService(
	store repository.Store,
	inventario InventarioService,
	folios FolioService,
	pub notify.Publisher,
) VentaService {
	return &ventaService{
		store:      store,
		inventario: inventario,
		folios:     folios,
		pub:        pub,
	}
}

type lineaVenta struct {
	productoID uuid.UUID
	cantidad   int64
	precio     int64
	subtotal   int64
}

// ── RegistrarVenta ────────────────────────────────────────────────────────────
// Two phases:
//   1. Validation, outside any transaction: input shape, session open,
//      every product sellable, totals and cash rounding, payments add up.
//      Nothing is written, so a rejection leaves no trace.
//   2. Commit, one transaction: lock session and re-check it is open,
//      draw sale number and folio, persist sale/items/payments, post one
//      SALE entry per line. Any failure rolls back all of it.
// Notification happens after commit and never affects the result.

func (s *ventaService) RegistrarVenta(ctx context.Context, ident authz.Identidad, req dto.RegistrarVentaRequest) (resp *dto.VentaResponse, err error) {
	defer func() {
		if e, ok := apierror.As(err); ok {
			metrics.VentasRechazadas.WithLabelValues(e.Code).Inc()
		}
	}()

	// 1a. Input shape
	cajaID, err := parseID("caja_id", req.CajaID)
	if err != nil {
		return nil, err
	}
	sesionID, err := parseID("sesion_caja_id", req.SesionCajaID)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, apierror.Validation(apierror.CodeEmptySale, "la venta no tiene items")
	}
	if len(req.Pagos) == 0 {
		return nil, apierror.Validation(apierror.CodeInvalidInput, "la venta no tiene pagos")
	}
	tipoDoc := req.TipoDocumento
	switch tipoDoc {
	case "":
		tipoDoc = model.DocumentoBoleta
	case model.DocumentoBoleta, model.DocumentoFactura:
	default:
		return nil, apierror.Validation(apierror.CodeInvalidInput, fmt.Sprintf("tipo de documento desconocido %q", tipoDoc))
	}

	lineas := make([]lineaVenta, 0, len(req.Items))
	var total int64
	for i, item := range req.Items {
		pid, err := parseID(fmt.Sprintf("items[%d].producto_id", i), item.ProductoID)
		if err != nil {
			return nil, err
		}
		if item.Cantidad <= 0 {
			return nil, apierror.Validation(apierror.CodeInvalidQuantity, "la cantidad debe ser mayor a cero").
				WithField("item", fmt.Sprint(i))
		}
		if item.PrecioUnitario < 0 {
			return nil, apierror.Validation(apierror.CodeInvalidAmount, "el precio no puede ser negativo").
				WithField("item", fmt.Sprint(i))
		}
		sub, ok := multiplicar(item.Cantidad, item.PrecioUnitario)
		if !ok {
			return nil, apierror.Validation(apierror.CodeInvalidAmount, "el subtotal excede el rango permitido").
				WithField("item", fmt.Sprint(i))
		}
		if total, ok = sumar(total, sub); !ok {
			return nil, apierror.Validation(apierror.CodeInvalidAmount, "el total excede el rango permitido")
		}
		lineas = append(lineas, lineaVenta{productoID: pid, cantidad: item.Cantidad, precio: item.PrecioUnitario, subtotal: sub})
	}

	var sumaPagos int64
	for i, p := range req.Pagos {
		if !model.MetodoValido(p.Metodo) {
			return nil, apierror.Validation(apierror.CodeInvalidInput, fmt.Sprintf("medio de pago desconocido %q", p.Metodo)).
				WithField("pago", fmt.Sprint(i))
		}
		if p.Monto <= 0 {
			return nil, apierror.Validation(apierror.CodeInvalidAmount, "el monto del pago debe ser mayor a cero").
				WithField("pago", fmt.Sprint(i))
		}
		var ok bool
		if sumaPagos, ok = sumar(sumaPagos, p.Monto); !ok {
			return nil, apierror.Validation(apierror.CodeInvalidAmount, "la suma de pagos excede el rango permitido")
		}
	}

	// 1b. Session open and bound to the declared caja
	sesion, err := s.store.Cajas().FindSesionByID(ctx, sesionID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if sesion == nil || !sesion.Abierta() || sesion.CajaID != cajaID {
		return nil, apierror.Domain(apierror.CodeSessionNotOpen, "la sesion de caja no esta abierta")
	}

	// 1c. Every product provisioned and enabled at the branch
	for _, l := range lineas {
		st, err := s.store.Stock().FindStock(ctx, l.productoID, sesion.SucursalID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if st == nil || !st.Habilitado {
			return nil, apierror.Domain(apierror.CodeProductNotSellable, "producto no disponible para venta en la sucursal").
				WithField("producto_id", l.productoID.String())
		}
	}

	// 1d. Rounding and payment balance
	ajuste := ajusteRedondeo(total, req.Pagos)
	totalCobrado, ok := sumar(total, ajuste)
	if !ok {
		return nil, apierror.Validation(apierror.CodeInvalidAmount, "el total excede el rango permitido")
	}
	if sumaPagos != totalCobrado {
		return nil, apierror.Conflict(apierror.CodePaymentMismatch,
			fmt.Sprintf("los pagos suman %d y el monto a cobrar es %d", sumaPagos, totalCobrado)).
			WithField("esperado", fmt.Sprint(totalCobrado)).
			WithField("recibido", fmt.Sprint(sumaPagos))
	}

	// 2. Commit
	now := time.Now().UTC()
	venta := &model.Venta{
		ID:             uuid.New(),
		SesionCajaID:   sesion.ID,
		SucursalID:     sesion.SucursalID,
		CajaID:         sesion.CajaID,
		UsuarioID:      ident.UsuarioID,
		Total:          total,
		AjusteRedondeo: ajuste,
		TotalCobrado:   totalCobrado,
		TipoDocumento:  tipoDoc,
		Estado:         model.EstadoVentaFinalizada,
		CreatedAt:      now,
	}
	for _, l := range lineas {
		venta.Items = append(venta.Items, model.VentaItem{
			ID:             uuid.New(),
			VentaID:        venta.ID,
			ProductoID:     l.productoID,
			Cantidad:       l.cantidad,
			PrecioUnitario: l.precio,
			Subtotal:       l.subtotal,
		})
	}
	pagos := make([]model.Pago, 0, len(req.Pagos))
	for _, p := range req.Pagos {
		pagos = append(pagos, model.Pago{
			ID:           uuid.New(),
			VentaID:      venta.ID,
			SesionCajaID: sesion.ID,
			SucursalID:   sesion.SucursalID,
			Metodo:       p.Metodo,
			Monto:        p.Monto,
			CreatedAt:    now,
		})
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		locked, err := tx.Cajas().LockSesion(ctx, sesion.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if locked == nil || !locked.Abierta() {
			return apierror.Domain(apierror.CodeSessionNotOpen, "la sesion de caja se cerro durante la venta")
		}

		if venta.NumeroVenta, err = s.folios.SiguienteNumeroVenta(ctx, tx, sesion.ID); err != nil {
			return err
		}
		if venta.Folio, err = s.folios.SiguienteFolio(ctx, tx, sesion.SucursalID, now); err != nil {
			return err
		}

		if err := tx.Ventas().Create(ctx, venta); err != nil {
			return fmt.Errorf("crear venta: %w", err)
		}
		if err := tx.Ventas().CreatePagos(ctx, pagos); err != nil {
			return fmt.Errorf("crear pagos: %w", err)
		}

		// Stock rows are locked in product order so two sales sharing
		// products cannot deadlock each other.
		refTipo := model.ReferenciaVenta
		obs := "Venta " + venta.Folio
		for _, l := range ordenPorProducto(lineas) {
			_, err := s.inventario.RegistrarMovimientoTx(ctx, tx, MovimientoInput{
				ProductoID:     l.productoID,
				SucursalID:     sesion.SucursalID,
				Direccion:      model.DireccionOut,
				Motivo:         model.MotivoVenta,
				Cantidad:       l.cantidad,
				ReferenciaTipo: &refTipo,
				ReferenciaID:   &venta.ID,
				Observacion:    &obs,
				UsuarioID:      &venta.UsuarioID,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, conflictoConcurrente(err)
	}
	venta.Pagos = pagos

	metrics.VentasRegistradas.Inc()
	metrics.MovimientosStock.WithLabelValues(string(model.MotivoVenta)).Add(float64(len(lineas)))
	log.Info().
		Str("venta_id", venta.ID.String()).
		Str("folio", venta.Folio).
		Int64("numero_venta", venta.NumeroVenta).
		Int64("total_cobrado", venta.TotalCobrado).
		Msg("venta registrada")
	publicar(ctx, s.pub, notify.Evento{
		Tipo:            notify.EventoVentaRegistrada,
		SucursalID:      venta.SucursalID.String(),
		CajaID:          venta.CajaID.String(),
		SesionCajaID:    venta.SesionCajaID.String(),
		VentaID:         venta.ID.String(),
		Folio:           venta.Folio,
		OrigenUsuarioID: ident.UsuarioID.String(),
	})

	return ventaToResponse(venta), nil
}

// ── ObtenerVenta ──────────────────────────────────────────────────────────────

func (s *ventaService) ObtenerVenta(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error) {
	v, err := s.store.Ventas().FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound(apierror.CodeSaleNotFound, "venta no encontrada")
		}
		return nil, err
	}
	return ventaToResponse(v), nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// ajusteRedondeo rounds a cash-only sale up to the next multiple of 10.
// Any other payment composition is charged exactly.
func ajusteRedondeo(total int64, pagos []dto.PagoRequest) int64 {
	if len(pagos) != 1 || pagos[0].Metodo != model.MetodoEfectivo {
		return 0
	}
	return (10 - total%10) % 10
}

// ordenPorProducto returns a copy of lineas sorted by product id.
func ordenPorProducto(lineas []lineaVenta) []lineaVenta {
	out := append([]lineaVenta(nil), lineas...)
	sort.SliceStable(out, func(i, j int) bool {
		return bytes.Compare(out[i].productoID[:], out[j].productoID[:]) < 0
	})
	return out
}

func ventaToResponse(v *model.Venta) *dto.VentaResponse {
	resp := &dto.VentaResponse{
		ID:             v.ID.String(),
		Folio:          v.Folio,
		NumeroVenta:    v.NumeroVenta,
		SucursalID:     v.SucursalID.String(),
		CajaID:         v.CajaID.String(),
		SesionCajaID:   v.SesionCajaID.String(),
		UsuarioID:      v.UsuarioID.String(),
		TipoDocumento:  v.TipoDocumento,
		Estado:         v.Estado,
		Total:          v.Total,
		AjusteRedondeo: v.AjusteRedondeo,
		TotalCobrado:   v.TotalCobrado,
		CreatedAt:      formatTime(v.CreatedAt),
		Items:          make([]dto.ItemVentaResponse, 0, len(v.Items)),
		Pagos:          make([]dto.PagoResponse, 0, len(v.Pagos)),
	}
	for _, it := range v.Items {
		resp.Items = append(resp.Items, dto.ItemVentaResponse{
			ProductoID:     it.ProductoID.String(),
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			Subtotal:       it.Subtotal,
		})
	}
	for _, p := range v.Pagos {
		resp.Pagos = append(resp.Pagos, dto.PagoResponse{Metodo: p.Metodo, Monto: p.Monto})
	}
	return resp
}
