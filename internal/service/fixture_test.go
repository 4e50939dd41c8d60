package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"bersapos/internal/apierror"
	"bersapos/internal/authz"
	"bersapos/internal/dto"
	"bersapos/internal/model"
	"bersapos/internal/notify"
	"bersapos/internal/repository"
	"bersapos/internal/repository/memory"
	"bersapos/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

type pubStub struct {
	mu      sync.Mutex
	eventos []notify.Evento
	err     error
}

func (p *pubStub) Publicar(_ context.Context, ev notify.Evento) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.eventos = append(p.eventos, ev)
	return nil
}

func (p *pubStub) tipos() []notify.TipoEvento {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.TipoEvento, 0, len(p.eventos))
	for _, ev := range p.eventos {
		out = append(out, ev.Tipo)
	}
	return out
}

// fallaStore fails the n-th AplicarMovimiento made through a transaction.
type fallaStore struct {
	repository.Store
	cnt *fallaContador
}

type fallaContador struct {
	mu       sync.Mutex
	llamadas int
	fallarEn int
}

var errDiscoLleno = errors.New("disk full")

func (f fallaStore) Stock() repository.StockRepository {
	return fallaStock{StockRepository: f.Store.Stock(), cnt: f.cnt}
}

func (f fallaStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return f.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(fallaStore{Store: tx, cnt: f.cnt})
	})
}

type fallaStock struct {
	repository.StockRepository
	cnt *fallaContador
}

func (s fallaStock) AplicarMovimiento(ctx context.Context, st *model.StockSucursal, mov *model.MovimientoStock) error {
	s.cnt.mu.Lock()
	s.cnt.llamadas++
	n := s.cnt.llamadas
	s.cnt.mu.Unlock()
	if n == s.cnt.fallarEn {
		return errDiscoLleno
	}
	return s.StockRepository.AplicarMovimiento(ctx, st, mov)
}

// registroStore records the product of every AplicarMovimiento, in order.
type registroStore struct {
	repository.Store
	reg *registro
}

type registro struct {
	mu        sync.Mutex
	productos []uuid.UUID
}

func (r registroStore) Stock() repository.StockRepository {
	return registroStock{StockRepository: r.Store.Stock(), reg: r.reg}
}

func (r registroStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return r.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(registroStore{Store: tx, reg: r.reg})
	})
}

type registroStock struct {
	repository.StockRepository
	reg *registro
}

func (s registroStock) AplicarMovimiento(ctx context.Context, st *model.StockSucursal, mov *model.MovimientoStock) error {
	s.reg.mu.Lock()
	s.reg.productos = append(s.reg.productos, mov.ProductoID)
	s.reg.mu.Unlock()
	return s.StockRepository.AplicarMovimiento(ctx, st, mov)
}

// abortaStore runs fn and then reports the transaction as aborted by the
// database, the way the postgres store reports a deadlock.
type abortaStore struct{ repository.Store }

func (a abortaStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	_ = a.Store.WithinTx(ctx, func(tx repository.Store) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errors.New("rollback")
	})
	return fmt.Errorf("%w: deadlock detected", repository.ErrConflictoConcurrente)
}

// ── Fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	store      *memory.Store
	pub        *pubStub
	caja       service.CajaService
	inventario service.InventarioService
	ventas     service.VentaService

	sucursalID uuid.UUID
	cajaID     uuid.UUID
	cajero     authz.Identidad
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	f := &fixture{store: store, pub: &pubStub{}}
	f.wire(store)

	f.sucursalID = uuid.New()
	f.cajaID = uuid.New()
	store.AddSucursal(model.Sucursal{ID: f.sucursalID, Nombre: "Centro", Codigo: "SCL", Activa: true})
	store.AddCaja(model.Caja{ID: f.cajaID, SucursalID: f.sucursalID, Nombre: "Caja 1", Activa: true})
	f.cajero = authz.Identidad{UsuarioID: uuid.New(), SucursalID: f.sucursalID, Rol: authz.RolCajero}
	return f
}

func (f *fixture) wire(store repository.Store) {
	f.inventario = service.NewInventarioService(store)
	f.caja = service.NewCajaService(store, f.pub)
	f.ventas = service.NewVentaService(store, f.inventario, service.NewFolioService(time.UTC), f.pub)
}

func (f *fixture) abrir(t *testing.T, montoInicial int64) uuid.UUID {
	t.Helper()
	s, err := f.caja.Abrir(context.Background(), f.cajero, dto.AbrirCajaRequest{
		CajaID:       f.cajaID.String(),
		MontoInicial: montoInicial,
	})
	require.NoError(t, err)
	return uuid.MustParse(s.ID)
}

// producto provisions a product at the fixture branch with an initial balance.
func (f *fixture) producto(t *testing.T, inicial int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, f.store.Stock().Provisionar(ctx, id, f.sucursalID))
	if inicial > 0 {
		_, err := f.inventario.RegistrarMovimiento(ctx, uuid.Nil, dto.RegistrarMovimientoRequest{
			ProductoID: id.String(),
			SucursalID: f.sucursalID.String(),
			Motivo:     string(model.MotivoCompra),
			Cantidad:   inicial,
		})
		require.NoError(t, err)
	}
	return id
}

func (f *fixture) vender(sesionID uuid.UUID, items []dto.ItemVentaRequest, pagos ...dto.PagoRequest) (*dto.VentaResponse, error) {
	return f.ventas.RegistrarVenta(context.Background(), f.cajero, dto.RegistrarVentaRequest{
		CajaID:       f.cajaID.String(),
		SesionCajaID: sesionID.String(),
		Items:        items,
		Pagos:        pagos,
	})
}

func (f *fixture) saldo(t *testing.T, productoID uuid.UUID) int64 {
	t.Helper()
	n, err := f.inventario.SaldoActual(context.Background(), productoID, f.sucursalID)
	require.NoError(t, err)
	return n
}

func item(productoID uuid.UUID, cantidad, precio int64) dto.ItemVentaRequest {
	return dto.ItemVentaRequest{ProductoID: productoID.String(), Cantidad: cantidad, PrecioUnitario: precio}
}

func pago(metodo string, monto int64) dto.PagoRequest {
	return dto.PagoRequest{Metodo: metodo, Monto: monto}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	e, ok := apierror.As(err)
	require.Truef(t, ok, "expected *apierror.Error, got %T: %v", err, err)
	require.Equal(t, code, e.Code, e.Detail)
}
