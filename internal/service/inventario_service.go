package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bersapos/internal/apierror"
	"bersapos/internal/dto"
	"bersapos/internal/metrics"
	"bersapos/internal/model"
	"bersapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MovimientoInput describes one ledger post.
type MovimientoInput struct {
	ProductoID uuid.UUID
	SucursalID uuid.UUID
	// Direccion may be empty; it is derived from Motivo.
	Direccion      model.Direccion
	Motivo         model.MotivoMovimiento
	Cantidad       int64
	ReferenciaTipo *string
	ReferenciaID   *uuid.UUID
	Observacion    *string
	UsuarioID      *uuid.UUID
}

// InventarioService owns the per-branch stock ledger.
type InventarioService interface {
	RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarMovimientoRequest) (*dto.MovimientoStockResponse, error)
	// RegistrarMovimientoTx posts inside the caller's transaction. Used by
	// sale settlement so stock and sale commit together.
	RegistrarMovimientoTx(ctx context.Context, tx repository.Store, in MovimientoInput) (*model.MovimientoStock, error)
	Kardex(ctx context.Context, productoID, sucursalID uuid.UUID, limit int) ([]dto.MovimientoStockResponse, error)
	SaldoActual(ctx context.Context, productoID, sucursalID uuid.UUID) (int64, error)
}

type inventarioService struct {
	store repository.Store
}

func NewInventarioService(store repository.Store) InventarioService {
	return &inventarioService{store: store}
}

// ── RegistrarMovimiento ───────────────────────────────────────────────────────

func (s *inventarioService) RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarMovimientoRequest) (*dto.MovimientoStockResponse, error) {
	productoID, err := parseID("producto_id", req.ProductoID)
	if err != nil {
		return nil, err
	}
	sucursalID, err := parseID("sucursal_id", req.SucursalID)
	if err != nil {
		return nil, err
	}
	in := MovimientoInput{
		ProductoID:  productoID,
		SucursalID:  sucursalID,
		Direccion:   model.Direccion(req.Direccion),
		Motivo:      model.MotivoMovimiento(req.Motivo),
		Cantidad:    req.Cantidad,
		Observacion: req.Observacion,
	}
	if usuarioID != uuid.Nil {
		in.UsuarioID = &usuarioID
	}
	if req.Referencia != nil {
		refID, err := parseID("referencia.id", req.Referencia.ID)
		if err != nil {
			return nil, err
		}
		tipo := req.Referencia.Tipo
		in.ReferenciaTipo = &tipo
		in.ReferenciaID = &refID
	}

	var mov *model.MovimientoStock
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		mov, err = s.RegistrarMovimientoTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, conflictoConcurrente(err)
	}

	metrics.MovimientosStock.WithLabelValues(string(mov.Motivo)).Inc()
	log.Info().
		Str("producto_id", productoID.String()).
		Str("sucursal_id", sucursalID.String()).
		Str("motivo", string(mov.Motivo)).
		Int64("cantidad", mov.Cantidad).
		Int64("saldo", mov.SaldoPosterior).
		Msg("movimiento de stock registrado")

	resp := movimientoToResponse(mov)
	return &resp, nil
}

// ── RegistrarMovimientoTx ─────────────────────────────────────────────────────
// Lock balance → compute → CAS update + append. A post never mutates an
// existing entry; corrections are new entries with an opposite reason code.

func (s *inventarioService) RegistrarMovimientoTx(ctx context.Context, tx repository.Store, in MovimientoInput) (*model.MovimientoStock, error) {
	if in.Cantidad <= 0 {
		return nil, apierror.Validation(apierror.CodeInvalidQuantity, "la cantidad debe ser mayor a cero")
	}
	dir, ok := in.Motivo.Direccion()
	if !ok {
		return nil, apierror.Validation(apierror.CodeInvalidReasonCode, fmt.Sprintf("motivo desconocido %q", in.Motivo))
	}
	if in.Direccion != "" && in.Direccion != dir {
		return nil, apierror.Validation(apierror.CodeDirectionMismatch,
			fmt.Sprintf("el motivo %s implica direccion %s", in.Motivo, dir))
	}

	stock, err := tx.Stock().LockStock(ctx, in.ProductoID, in.SucursalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound(apierror.CodeNoStockRecord, "el producto no tiene stock provisionado en la sucursal").
				WithField("producto_id", in.ProductoID.String())
		}
		return nil, fmt.Errorf("bloquear stock: %w", err)
	}
	// Only sales are gated: restocks and adjustments of a disabled product are allowed.
	if in.Motivo == model.MotivoVenta && !stock.Habilitado {
		return nil, apierror.Domain(apierror.CodeProductDisabled, "el producto esta deshabilitado en la sucursal").
			WithField("producto_id", in.ProductoID.String())
	}

	anterior := stock.Cantidad
	delta := in.Cantidad
	if dir == model.DireccionOut {
		delta = -in.Cantidad
	}
	posterior, ok := sumar(anterior, delta)
	if !ok {
		return nil, apierror.Validation(apierror.CodeInvalidQuantity, "la cantidad excede el rango del saldo").
			WithField("producto_id", in.ProductoID.String())
	}
	if posterior < 0 {
		metrics.StockNegativo.Inc()
		log.Warn().
			Str("producto_id", in.ProductoID.String()).
			Str("sucursal_id", in.SucursalID.String()).
			Int64("saldo_anterior", anterior).
			Int64("saldo_posterior", posterior).
			Msg("stock negativo")
	}

	mov := &model.MovimientoStock{
		ID:             uuid.New(),
		ProductoID:     in.ProductoID,
		SucursalID:     in.SucursalID,
		Direccion:      dir,
		Motivo:         in.Motivo,
		Cantidad:       in.Cantidad,
		SaldoAnterior:  anterior,
		SaldoPosterior: posterior,
		ReferenciaTipo: in.ReferenciaTipo,
		ReferenciaID:   in.ReferenciaID,
		Observacion:    in.Observacion,
		UsuarioID:      in.UsuarioID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := tx.Stock().AplicarMovimiento(ctx, stock, mov); err != nil {
		if errors.Is(err, repository.ErrConflictoConcurrente) {
			return nil, apierror.Conflict(apierror.CodeConcurrentUpdate, "el stock fue modificado concurrentemente, reintente")
		}
		return nil, fmt.Errorf("aplicar movimiento: %w", err)
	}
	return mov, nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *inventarioService) Kardex(ctx context.Context, productoID, sucursalID uuid.UUID, limit int) ([]dto.MovimientoStockResponse, error) {
	movs, err := s.store.Stock().ListMovimientos(ctx, productoID, sucursalID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MovimientoStockResponse, 0, len(movs))
	for i := range movs {
		out = append(out, movimientoToResponse(&movs[i]))
	}
	return out, nil
}

func (s *inventarioService) SaldoActual(ctx context.Context, productoID, sucursalID uuid.UUID) (int64, error) {
	st, err := s.store.Stock().FindStock(ctx, productoID, sucursalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, apierror.NotFound(apierror.CodeNoStockRecord, "el producto no tiene stock provisionado en la sucursal")
		}
		return 0, err
	}
	return st.Cantidad, nil
}

func movimientoToResponse(m *model.MovimientoStock) dto.MovimientoStockResponse {
	resp := dto.MovimientoStockResponse{
		ID:             m.ID.String(),
		ProductoID:     m.ProductoID.String(),
		SucursalID:     m.SucursalID.String(),
		Secuencia:      m.Secuencia,
		Direccion:      string(m.Direccion),
		Motivo:         string(m.Motivo),
		Cantidad:       m.Cantidad,
		SaldoAnterior:  m.SaldoAnterior,
		SaldoPosterior: m.SaldoPosterior,
		ReferenciaTipo: m.ReferenciaTipo,
		Observacion:    m.Observacion,
		CreatedAt:      formatTime(m.CreatedAt),
	}
	if m.ReferenciaID != nil {
		id := m.ReferenciaID.String()
		resp.ReferenciaID = &id
	}
	return resp
}
