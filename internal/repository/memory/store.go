// Package memory is an in-process repository.Store used by tests and by the
// STORE_DRIVER=memory mode. A single mutex serializes every operation and is
// held for the whole of a WithinTx call, so transactions are fully isolated.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bersapos/internal/model"
	"bersapos/internal/repository"

	"github.com/google/uuid"
)

type stockKey struct {
	productoID uuid.UUID
	sucursalID uuid.UUID
}

type datos struct {
	cajas       map[uuid.UUID]model.Caja
	sucursales  map[uuid.UUID]model.Sucursal
	sesiones    map[uuid.UUID]model.SesionCaja
	stock       map[stockKey]model.StockSucursal
	movimientos []model.MovimientoStock
	ventas      map[uuid.UUID]model.Venta
	pagos       []model.Pago
	contadores  map[string]int64
}

func newDatos() *datos {
	return &datos{
		cajas:      make(map[uuid.UUID]model.Caja),
		sucursales: make(map[uuid.UUID]model.Sucursal),
		sesiones:   make(map[uuid.UUID]model.SesionCaja),
		stock:      make(map[stockKey]model.StockSucursal),
		ventas:     make(map[uuid.UUID]model.Venta),
		contadores: make(map[string]int64),
	}
}

func (d *datos) clone() *datos {
	c := newDatos()
	for k, v := range d.cajas {
		c.cajas[k] = v
	}
	for k, v := range d.sucursales {
		c.sucursales[k] = v
	}
	for k, v := range d.sesiones {
		c.sesiones[k] = v
	}
	for k, v := range d.stock {
		c.stock[k] = v
	}
	for k, v := range d.ventas {
		c.ventas[k] = v
	}
	for k, v := range d.contadores {
		c.contadores[k] = v
	}
	c.movimientos = append([]model.MovimientoStock(nil), d.movimientos...)
	c.pagos = append([]model.Pago(nil), d.pagos...)
	return c
}

type Store struct {
	mu   *sync.Mutex
	data *datos
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, data: newDatos()}
}

// lock acquires the store mutex unless the caller already holds it through WithinTx.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Cajas() repository.CajaRepository { return cajaRepo{s} }
func (s *Store) Stock() repository.StockRepository { return stockRepo{s} }
func (s *Store) Ventas() repository.VentaRepository { return ventaRepo{s} }
func (s *Store) Contadores() repository.ContadorRepository { return contadorRepo{s} }
func (s *Store) Sucursales() repository.SucursalRepository { return sucursalRepo{s} }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.data.clone()
	defer func() {
		if r := recover(); r != nil {
			*s.data = *snap
			panic(r)
		}
	}()

	if err := fn(&Store{mu: s.mu, data: s.data, inTx: true}); err != nil {
		*s.data = *snap
		return err
	}
	return nil
}

// ── Seeding and inspection ────────────────────────────────────────────────────

func (s *Store) AddSucursal(suc model.Sucursal) {
	defer s.lock()()
	s.data.sucursales[suc.ID] = suc
}

func (s *Store) AddCaja(c model.Caja) {
	defer s.lock()()
	s.data.cajas[c.ID] = c
}

// Dump is a point-in-time copy of the stored rows.
type Dump struct {
	Sesiones    []model.SesionCaja
	Movimientos []model.MovimientoStock
	Ventas      []model.Venta
	Pagos       []model.Pago
	Contadores  map[string]int64
}

func (s *Store) Dump() Dump {
	defer s.lock()()
	d := Dump{
		Movimientos: append([]model.MovimientoStock(nil), s.data.movimientos...),
		Pagos:       append([]model.Pago(nil), s.data.pagos...),
		Contadores:  make(map[string]int64, len(s.data.contadores)),
	}
	for _, ses := range s.data.sesiones {
		d.Sesiones = append(d.Sesiones, ses)
	}
	for _, v := range s.data.ventas {
		d.Ventas = append(d.Ventas, v)
	}
	for k, v := range s.data.contadores {
		d.Contadores[k] = v
	}
	sort.Slice(d.Ventas, func(i, j int) bool { return d.Ventas[i].Folio < d.Ventas[j].Folio })
	return d
}

// ── Cajas ─────────────────────────────────────────────────────────────────────

type cajaRepo struct{ s *Store }

func (r cajaRepo) FindCaja(_ context.Context, id uuid.UUID) (*model.Caja, error) {
	defer r.s.lock()()
	c, ok := r.s.data.cajas[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r cajaRepo) CreateCaja(_ context.Context, c *model.Caja) error {
	defer r.s.lock()()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if _, exists := r.s.data.cajas[c.ID]; exists {
		return fmt.Errorf("caja %s ya existe", c.ID)
	}
	r.s.data.cajas[c.ID] = *c
	return nil
}

func (r cajaRepo) CreateSesion(_ context.Context, ses *model.SesionCaja) error {
	defer r.s.lock()()
	if _, exists := r.s.data.sesiones[ses.ID]; exists {
		return fmt.Errorf("sesion %s ya existe", ses.ID)
	}
	if ses.Estado == model.EstadoSesionAbierta {
		for _, other := range r.s.data.sesiones {
			if other.CajaID == ses.CajaID && other.Abierta() {
				return repository.ErrSesionAbiertaDuplicada
			}
		}
	}
	r.s.data.sesiones[ses.ID] = *ses
	return nil
}

func (r cajaRepo) FindSesionAbierta(_ context.Context, cajaID uuid.UUID) (*model.SesionCaja, error) {
	defer r.s.lock()()
	for _, ses := range r.s.data.sesiones {
		if ses.CajaID == cajaID && ses.Abierta() {
			return &ses, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r cajaRepo) FindSesionByID(_ context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	defer r.s.lock()()
	ses, ok := r.s.data.sesiones[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ses, nil
}

// LockSesion is FindSesionByID; the store mutex already serializes transactions.
func (r cajaRepo) LockSesion(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	return r.FindSesionByID(ctx, id)
}

func (r cajaRepo) CerrarSesion(_ context.Context, ses *model.SesionCaja) error {
	defer r.s.lock()()
	cur, ok := r.s.data.sesiones[ses.ID]
	if !ok || !cur.Abierta() {
		return repository.ErrSesionNoAbierta
	}
	cur.Estado = model.EstadoSesionCerrada
	cur.CerradaPor = ses.CerradaPor
	cur.ClosedAt = ses.ClosedAt
	cur.MontoEsperado = ses.MontoEsperado
	cur.MontoDeclarado = ses.MontoDeclarado
	cur.Diferencia = ses.Diferencia
	cur.DiferenciaPct = ses.DiferenciaPct
	cur.ClasificacionDiferencia = ses.ClasificacionDiferencia
	cur.MotivoDiferencia = ses.MotivoDiferencia
	r.s.data.sesiones[ses.ID] = cur
	ses.Estado = model.EstadoSesionCerrada
	return nil
}

// ── Stock ─────────────────────────────────────────────────────────────────────

type stockRepo struct{ s *Store }

func (r stockRepo) FindStock(_ context.Context, productoID, sucursalID uuid.UUID) (*model.StockSucursal, error) {
	defer r.s.lock()()
	st, ok := r.s.data.stock[stockKey{productoID, sucursalID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}

func (r stockRepo) LockStock(ctx context.Context, productoID, sucursalID uuid.UUID) (*model.StockSucursal, error) {
	return r.FindStock(ctx, productoID, sucursalID)
}

func (r stockRepo) AplicarMovimiento(_ context.Context, st *model.StockSucursal, mov *model.MovimientoStock) error {
	defer r.s.lock()()
	key := stockKey{st.ProductoID, st.SucursalID}
	cur, ok := r.s.data.stock[key]
	if !ok || cur.Version != st.Version {
		return repository.ErrConflictoConcurrente
	}

	now := time.Now().UTC()
	cur.Cantidad = mov.SaldoPosterior
	cur.Version++
	cur.UpdatedAt = now
	r.s.data.stock[key] = cur

	mov.Secuencia = cur.Version
	r.s.data.movimientos = append(r.s.data.movimientos, *mov)
	*st = cur
	return nil
}

func (r stockRepo) ListMovimientos(_ context.Context, productoID, sucursalID uuid.UUID, limit int) ([]model.MovimientoStock, error) {
	defer r.s.lock()()
	var out []model.MovimientoStock
	for _, m := range r.s.data.movimientos {
		if m.ProductoID == productoID && m.SucursalID == sucursalID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Secuencia < out[j].Secuencia })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r stockRepo) Provisionar(_ context.Context, productoID, sucursalID uuid.UUID) error {
	defer r.s.lock()()
	key := stockKey{productoID, sucursalID}
	if _, ok := r.s.data.stock[key]; ok {
		return nil
	}
	r.s.data.stock[key] = model.StockSucursal{
		ProductoID: productoID,
		SucursalID: sucursalID,
		Habilitado: true,
		UpdatedAt:  time.Now().UTC(),
	}
	return nil
}

func (r stockRepo) SetHabilitado(_ context.Context, productoID, sucursalID uuid.UUID, habilitado bool) error {
	defer r.s.lock()()
	key := stockKey{productoID, sucursalID}
	st, ok := r.s.data.stock[key]
	if !ok {
		return repository.ErrNotFound
	}
	st.Habilitado = habilitado
	r.s.data.stock[key] = st
	return nil
}

// ── Ventas ────────────────────────────────────────────────────────────────────

type ventaRepo struct{ s *Store }

func (r ventaRepo) Create(_ context.Context, v *model.Venta) error {
	defer r.s.lock()()
	if _, exists := r.s.data.ventas[v.ID]; exists {
		return fmt.Errorf("venta %s ya existe", v.ID)
	}
	for _, other := range r.s.data.ventas {
		if other.Folio == v.Folio {
			return fmt.Errorf("folio %s duplicado", v.Folio)
		}
		if other.SesionCajaID == v.SesionCajaID && other.NumeroVenta == v.NumeroVenta {
			return fmt.Errorf("numero de venta %d duplicado en sesion %s", v.NumeroVenta, v.SesionCajaID)
		}
	}
	stored := *v
	stored.Items = append([]model.VentaItem(nil), v.Items...)
	stored.Pagos = nil
	r.s.data.ventas[v.ID] = stored
	return nil
}

func (r ventaRepo) CreatePagos(_ context.Context, pagos []model.Pago) error {
	defer r.s.lock()()
	for _, p := range pagos {
		if _, ok := r.s.data.ventas[p.VentaID]; !ok {
			return fmt.Errorf("pago referencia venta inexistente %s", p.VentaID)
		}
	}
	r.s.data.pagos = append(r.s.data.pagos, pagos...)
	return nil
}

func (r ventaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Venta, error) {
	defer r.s.lock()()
	v, ok := r.s.data.ventas[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v.Items = append([]model.VentaItem(nil), v.Items...)
	for _, p := range r.s.data.pagos {
		if p.VentaID == id {
			v.Pagos = append(v.Pagos, p)
		}
	}
	return &v, nil
}

func (r ventaRepo) ResumenSesion(_ context.Context, sesionCajaID uuid.UUID) (*repository.ResumenVentas, error) {
	defer r.s.lock()()
	res := &repository.ResumenVentas{PagosPorMetodo: make(map[string]int64)}
	for _, v := range r.s.data.ventas {
		if v.SesionCajaID == sesionCajaID && v.Estado == model.EstadoVentaFinalizada {
			res.CantidadVentas++
			res.TotalVentas += v.Total
		}
	}
	for _, p := range r.s.data.pagos {
		if p.SesionCajaID != sesionCajaID {
			continue
		}
		if v, ok := r.s.data.ventas[p.VentaID]; ok && v.Estado == model.EstadoVentaFinalizada {
			res.PagosPorMetodo[p.Metodo] += p.Monto
		}
	}
	return res, nil
}

// ── Contadores y sucursales ───────────────────────────────────────────────────

type contadorRepo struct{ s *Store }

func (r contadorRepo) Incrementar(_ context.Context, clave string) (int64, error) {
	defer r.s.lock()()
	r.s.data.contadores[clave]++
	return r.s.data.contadores[clave], nil
}

type sucursalRepo struct{ s *Store }

func (r sucursalRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Sucursal, error) {
	defer r.s.lock()()
	suc, ok := r.s.data.sucursales[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &suc, nil
}

func (r sucursalRepo) Create(_ context.Context, suc *model.Sucursal) error {
	defer r.s.lock()()
	if suc.ID == uuid.Nil {
		suc.ID = uuid.New()
	}
	if _, exists := r.s.data.sucursales[suc.ID]; exists {
		return fmt.Errorf("sucursal %s ya existe", suc.ID)
	}
	r.s.data.sucursales[suc.ID] = *suc
	return nil
}
