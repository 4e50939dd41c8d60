package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	"github.com/shopspring/decimal"
)

type CajaService interface {
	Abrir(ctx context.Context, ident authz.Identidad, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error)
	// ResumenEsperado is a read-only preview of what Cerrar would compute.
	ResumenEsperado(ctx context.Context, cajaID uuid.UUID) (*dto.ResumenCajaResponse, error)
	Cerrar(ctx context.Context, ident authz.Identidad, req dto.CerrarCajaRequest) (*dto.CierreCajaResponse, error)
	ObtenerSesion(ctx context.Context, sesionID uuid.UUID) (*dto.SesionCajaResponse, error)
}

type cajaService struct {
	store repository.Store
	pub   notify.Publisher
}

func NewCajaService(store repository.Store, pub notify.Publisher) CajaService {
	return &cajaService{store: store, pub: pub}
}

// ── Abrir ─────────────────────────────────────────────────────────────────────
// One abierta session per caja. The uniqueness check is the insert itself
// (partial unique index), so two concurrent opens cannot both succeed.

func (s *cajaService) Abrir(ctx context.Context, ident authz.Identidad, req dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error) {
	if err := authz.Autorizar(authz.AccionAbrirCaja, ident); err != nil {
		return nil, err
	}
	cajaID, err := parseID("caja_id", req.CajaID)
	if err != nil {
		return nil, err
	}
	sucursalID := ident.SucursalID
	if req.SucursalID != "" {
		if sucursalID, err = parseID("sucursal_id", req.SucursalID); err != nil {
			return nil, err
		}
	}
	if req.MontoInicial < 0 {
		return nil, apierror.Validation(apierror.CodeInvalidAmount, "el monto inicial no puede ser negativo")
	}

	// Unknown cajas are accepted: master data may not be replicated here.
	caja, err := s.store.Cajas().FindCaja(ctx, cajaID)
	switch {
	case err == nil:
		if caja.SucursalID != sucursalID {
			return nil, apierror.Domain(apierror.CodeRegisterBranchMismatch, "la caja no pertenece a la sucursal")
		}
		if !caja.Activa {
			return nil, apierror.Domain(apierror.CodeRegisterInactive, "la caja esta desactivada")
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("buscar caja: %w", err)
	}

	sesion := &model.SesionCaja{
		ID:           uuid.New(),
		CajaID:       cajaID,
		SucursalID:   sucursalID,
		AbiertaPor:   ident.UsuarioID,
		MontoInicial: req.MontoInicial,
		Estado:       model.EstadoSesionAbierta,
		OpenedAt:     time.Now().UTC(),
	}
	if err := s.store.Cajas().CreateSesion(ctx, sesion); err != nil {
		if errors.Is(err, repository.ErrSesionAbiertaDuplicada) {
			return nil, apierror.Conflict(apierror.CodeOpenSessionExists, "ya existe una sesion abierta para esta caja")
		}
		return nil, fmt.Errorf("crear sesion de caja: %w", err)
	}

	metrics.SesionesAbiertas.Inc()
	log.Info().
		Str("sesion_caja_id", sesion.ID.String()).
		Str("caja_id", cajaID.String()).
		Int64("monto_inicial", sesion.MontoInicial).
		Msg("caja abierta")
	publicar(ctx, s.pub, notify.Evento{
		Tipo:            notify.EventoCajaAbierta,
		SucursalID:      sucursalID.String(),
		CajaID:          cajaID.String(),
		SesionCajaID:    sesion.ID.String(),
		OrigenUsuarioID: ident.UsuarioID.String(),
	})

	return sesionToResponse(sesion), nil
}

// ── ResumenEsperado ───────────────────────────────────────────────────────────

func (s *cajaService) ResumenEsperado(ctx context.Context, cajaID uuid.UUID) (*dto.ResumenCajaResponse, error) {
	sesion, err := s.store.Cajas().FindSesionAbierta(ctx, cajaID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound(apierror.CodeNoOpenSession, "la caja no tiene sesion abierta")
		}
		return nil, err
	}
	return buildResumen(ctx, s.store, sesion)
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// Blind count: the expected cash is computed after receiving the declared
// amount. The session row is locked, so no sale can settle against it while
// the summary is being computed.

func (s *cajaService) Cerrar(ctx context.Context, ident authz.Identidad, req dto.CerrarCajaRequest) (*dto.CierreCajaResponse, error) {
	if err := authz.Autorizar(authz.AccionCerrarCaja, ident); err != nil {
		return nil, err
	}
	cajaID, err := parseID("caja_id", req.CajaID)
	if err != nil {
		return nil, err
	}
	if req.MontoDeclarado < 0 {
		return nil, apierror.Validation(apierror.CodeInvalidAmount, "el monto declarado no puede ser negativo")
	}
	motivo := ""
	if req.MotivoDiferencia != nil {
		motivo = strings.TrimSpace(*req.MotivoDiferencia)
	}

	var (
		sesion  *model.SesionCaja
		resumen *dto.ResumenCajaResponse
		dif     dto.DiferenciaResponse
	)
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		abierta, err := tx.Cajas().FindSesionAbierta(ctx, cajaID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apierror.NotFound(apierror.CodeNoOpenSession, "la caja no tiene sesion abierta")
			}
			return err
		}
		sesion, err = tx.Cajas().LockSesion(ctx, abierta.ID)
		if err != nil {
			return err
		}
		if !sesion.Abierta() {
			return apierror.NotFound(apierror.CodeNoOpenSession, "la caja no tiene sesion abierta")
		}

		resumen, err = buildResumen(ctx, tx, sesion)
		if err != nil {
			return err
		}

		diferencia := req.MontoDeclarado - resumen.EfectivoEsperado
		if diferencia != 0 && motivo == "" {
			return apierror.Conflict(apierror.CodeVarianceReasonRequired,
				fmt.Sprintf("diferencia de %d requiere motivo", diferencia)).
				WithField("diferencia", fmt.Sprint(diferencia))
		}
		pct := porcentajeDiferencia(diferencia, resumen.EfectivoEsperado)
		dif = dto.DiferenciaResponse{
			Monto:         diferencia,
			Porcentaje:    pct,
			Clasificacion: clasificarDiferencia(pct),
		}

		now := time.Now().UTC()
		cerradaPor := ident.UsuarioID
		esperado := resumen.EfectivoEsperado
		declarado := req.MontoDeclarado
		clasif := dif.Clasificacion
		sesion.CerradaPor = &cerradaPor
		sesion.ClosedAt = &now
		sesion.MontoEsperado = &esperado
		sesion.MontoDeclarado = &declarado
		sesion.Diferencia = &diferencia
		sesion.DiferenciaPct = &pct
		sesion.ClasificacionDiferencia = &clasif
		sesion.MotivoDiferencia = nil
		if diferencia != 0 {
			sesion.MotivoDiferencia = &motivo
		}

		if err := tx.Cajas().CerrarSesion(ctx, sesion); err != nil {
			if errors.Is(err, repository.ErrSesionNoAbierta) {
				return apierror.NotFound(apierror.CodeNoOpenSession, "la caja no tiene sesion abierta")
			}
			return fmt.Errorf("cerrar sesion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, conflictoConcurrente(err)
	}

	metrics.SesionesCerradas.WithLabelValues(dif.Clasificacion).Inc()
	evt := log.Info()
	if dif.Clasificacion == "critico" {
		evt = log.Warn()
	}
	evt.Str("sesion_caja_id", sesion.ID.String()).
		Int64("esperado", resumen.EfectivoEsperado).
		Int64("declarado", req.MontoDeclarado).
		Int64("diferencia", dif.Monto).
		Str("clasificacion", dif.Clasificacion).
		Msg("caja cerrada")
	publicar(ctx, s.pub, notify.Evento{
		Tipo:            notify.EventoCajaCerrada,
		SucursalID:      sesion.SucursalID.String(),
		CajaID:          sesion.CajaID.String(),
		SesionCajaID:    sesion.ID.String(),
		OrigenUsuarioID: ident.UsuarioID.String(),
	})

	return &dto.CierreCajaResponse{
		SesionCajaID:     sesion.ID.String(),
		Estado:           model.EstadoSesionCerrada,
		Resumen:          *resumen,
		MontoDeclarado:   req.MontoDeclarado,
		Diferencia:       dif,
		MotivoDiferencia: sesion.MotivoDiferencia,
		CerradaPor:       ident.UsuarioID.String(),
		ClosedAt:         formatTime(*sesion.ClosedAt),
	}, nil
}

// ── ObtenerSesion ─────────────────────────────────────────────────────────────

func (s *cajaService) ObtenerSesion(ctx context.Context, sesionID uuid.UUID) (*dto.SesionCajaResponse, error) {
	sesion, err := s.store.Cajas().FindSesionByID(ctx, sesionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apierror.NotFound(apierror.CodeSessionNotFound, "sesion de caja no encontrada")
		}
		return nil, err
	}
	return sesionToResponse(sesion), nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func buildResumen(ctx context.Context, store repository.Store, sesion *model.SesionCaja) (*dto.ResumenCajaResponse, error) {
	rv, err := store.Ventas().ResumenSesion(ctx, sesion.ID)
	if err != nil {
		return nil, fmt.Errorf("resumen de ventas: %w", err)
	}
	pagos := make(map[string]int64, len(model.MetodosPago))
	for _, m := range model.MetodosPago {
		pagos[m] = rv.PagosPorMetodo[m]
	}
	return &dto.ResumenCajaResponse{
		SesionCajaID:     sesion.ID.String(),
		CajaID:           sesion.CajaID.String(),
		MontoInicial:     sesion.MontoInicial,
		CantidadVentas:   rv.CantidadVentas,
		TotalVentas:      rv.TotalVentas,
		PagosPorMetodo:   pagos,
		EfectivoEsperado: sesion.MontoInicial + pagos[model.MetodoEfectivo],
	}, nil
}

// porcentajeDiferencia is diferencia as a percentage of esperado, rounded to
// two decimals. With nothing expected any difference counts as 100%.
func porcentajeDiferencia(diferencia, esperado int64) decimal.Decimal {
	if diferencia == 0 {
		return decimal.Zero
	}
	if esperado == 0 {
		return decimal.NewFromInt(100).Mul(decimal.NewFromInt(sign(diferencia)))
	}
	return decimal.NewFromInt(diferencia).
		Div(decimal.NewFromInt(esperado)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

func sign(n int64) int64 {
	if n < 0 {
		return -1
	}
	return 1
}

// clasificarDiferencia returns "normal" | "advertencia" | "critico"
// normal: |pct| <= 1%, advertencia: <= 5%, critico: > 5%
func clasificarDiferencia(pct decimal.Decimal) string {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return "normal"
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return "advertencia"
	default:
		return "critico"
	}
}

func sesionToResponse(s *model.SesionCaja) *dto.SesionCajaResponse {
	resp := &dto.SesionCajaResponse{
		ID:           s.ID.String(),
		CajaID:       s.CajaID.String(),
		SucursalID:   s.SucursalID.String(),
		AbiertaPor:   s.AbiertaPor.String(),
		MontoInicial: s.MontoInicial,
		Estado:       s.Estado,
		OpenedAt:     formatTime(s.OpenedAt),
	}
	if s.ClosedAt != nil {
		t := formatTime(*s.ClosedAt)
		resp.ClosedAt = &t
	}
	return resp
}
