//go:build integration

package repository_test

// Runs the gorm Store against a real PostgreSQL started with testcontainers.
// Run with: go test -tags integration ./internal/repository/... -v

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"bersapos/internal/authz"
	"bersapos/internal/dto"
	"bersapos/internal/infra"
	"bersapos/internal/model"
	"bersapos/internal/notify"
	"bersapos/internal/repository"
	"bersapos/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("bersa_test"),
		tcPostgres.WithUsername("bersa"),
		tcPostgres.WithPassword("bersa"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(dsn, 20, 5)
	require.NoError(t, err)
	// NewDatabase already migrated; a second run must be a no-op.
	require.NoError(t, infra.RunMigrations(db))
	return db
}

func seed(t *testing.T, db *gorm.DB) (sucursal model.Sucursal, caja model.Caja) {
	t.Helper()
	sucursal = model.Sucursal{ID: uuid.New(), Nombre: "Centro", Codigo: "SCL", Activa: true}
	require.NoError(t, db.Create(&sucursal).Error)
	caja = model.Caja{ID: uuid.New(), SucursalID: sucursal.ID, Nombre: "Caja 1", Activa: true}
	require.NoError(t, db.Create(&caja).Error)
	return sucursal, caja
}

func TestPostgres_UnaSesionAbiertaPorCaja(t *testing.T) {
	db := setupDB(t)
	store := repository.NewStore(db)
	suc, caja := seed(t, db)

	const n = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		creadas  int
		rechazos int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Cajas().CreateSesion(context.Background(), &model.SesionCaja{
				CajaID:     caja.ID,
				SucursalID: suc.ID,
				AbiertaPor: uuid.New(),
				Estado:     model.EstadoSesionAbierta,
				OpenedAt:   time.Now().UTC(),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				creadas++
			case errors.Is(err, repository.ErrSesionAbiertaDuplicada):
				rechazos++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, creadas)
	assert.Equal(t, n-1, rechazos)

	abierta, err := store.Cajas().FindSesionAbierta(context.Background(), caja.ID)
	require.NoError(t, err)

	// Closing frees the slot; closing twice is refused.
	now := time.Now().UTC()
	usuario := uuid.New()
	abierta.CerradaPor, abierta.ClosedAt = &usuario, &now
	require.NoError(t, store.Cajas().CerrarSesion(context.Background(), abierta))
	assert.ErrorIs(t, store.Cajas().CerrarSesion(context.Background(), abierta), repository.ErrSesionNoAbierta)

	require.NoError(t, store.Cajas().CreateSesion(context.Background(), &model.SesionCaja{
		CajaID: caja.ID, SucursalID: suc.ID, AbiertaPor: usuario,
		Estado: model.EstadoSesionAbierta, OpenedAt: time.Now().UTC(),
	}))
}

func TestPostgres_CadenaDeMovimientosConcurrentes(t *testing.T) {
	db := setupDB(t)
	store := repository.NewStore(db)
	suc, _ := seed(t, db)
	inventario := service.NewInventarioService(store)
	ctx := context.Background()

	producto := uuid.New()
	require.NoError(t, store.Stock().Provisionar(ctx, producto, suc.ID))
	_, err := inventario.RegistrarMovimiento(ctx, uuid.Nil, dto.RegistrarMovimientoRequest{
		ProductoID: producto.String(),
		SucursalID: suc.ID.String(),
		Motivo:     string(model.MotivoCompra),
		Cantidad:   100,
	})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := inventario.RegistrarMovimiento(ctx, uuid.Nil, dto.RegistrarMovimientoRequest{
				ProductoID: producto.String(),
				SucursalID: suc.ID.String(),
				Motivo:     string(model.MotivoAjusteNegativo),
				Cantidad:   3,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	saldo, err := inventario.SaldoActual(ctx, producto, suc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100-3*n), saldo)

	movs, err := store.Stock().ListMovimientos(ctx, producto, suc.ID, 0)
	require.NoError(t, err)
	require.Len(t, movs, n+1)
	for i, m := range movs {
		assert.Equal(t, int64(i+1), m.Secuencia)
		if i > 0 {
			assert.Equal(t, movs[i-1].SaldoPosterior, m.SaldoAnterior)
		}
	}
}

func TestPostgres_VersionVencidaEsConflicto(t *testing.T) {
	db := setupDB(t)
	store := repository.NewStore(db)
	suc, _ := seed(t, db)
	ctx := context.Background()

	producto := uuid.New()
	require.NoError(t, store.Stock().Provisionar(ctx, producto, suc.ID))
	vieja, err := store.Stock().FindStock(ctx, producto, suc.ID)
	require.NoError(t, err)

	mov := func(st *model.StockSucursal) *model.MovimientoStock {
		return &model.MovimientoStock{
			ProductoID: producto, SucursalID: suc.ID,
			Direccion: model.DireccionIn, Motivo: model.MotivoCompra, Cantidad: 1,
			SaldoAnterior: st.Cantidad, SaldoPosterior: st.Cantidad + 1,
			CreatedAt: time.Now().UTC(),
		}
	}

	actual := *vieja
	require.NoError(t, store.Stock().AplicarMovimiento(ctx, &actual, mov(&actual)))
	assert.Equal(t, int64(1), actual.Version)

	err = store.Stock().AplicarMovimiento(ctx, vieja, mov(vieja))
	assert.ErrorIs(t, err, repository.ErrConflictoConcurrente)
}

func TestPostgres_ContadoresSinHuecos(t *testing.T) {
	db := setupDB(t)
	store := repository.NewStore(db)

	const n = 40
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		valores []int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := store.Contadores().Incrementar(context.Background(), "venta:test")
			assert.NoError(t, err)
			mu.Lock()
			valores = append(valores, v)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(valores, func(i, j int) bool { return valores[i] < valores[j] })
	for i, v := range valores {
		assert.Equal(t, int64(i+1), v)
	}
}

func TestPostgres_VentaRechazadaNoDejaRastro(t *testing.T) {
	db := setupDB(t)
	store := repository.NewStore(db)
	suc, caja := seed(t, db)
	ctx := context.Background()

	pub := notify.Nop{}
	inventario := service.NewInventarioService(store)
	cajas := service.NewCajaService(store, pub)
	ventas := service.NewVentaService(store, inventario, service.NewFolioService(time.UTC), pub)
	cajero := authz.Identidad{UsuarioID: uuid.New(), SucursalID: suc.ID, Rol: authz.RolCajero}

	ses, err := cajas.Abrir(ctx, cajero, dto.AbrirCajaRequest{CajaID: caja.ID.String(), MontoInicial: 5000})
	require.NoError(t, err)

	ok := uuid.New()
	require.NoError(t, store.Stock().Provisionar(ctx, ok, suc.ID))
	sinStock := uuid.New() // never provisioned

	req := dto.RegistrarVentaRequest{
		CajaID:       caja.ID.String(),
		SesionCajaID: ses.ID,
		Items: []dto.ItemVentaRequest{
			{ProductoID: ok.String(), Cantidad: 1, PrecioUnitario: 1000},
			{ProductoID: sinStock.String(), Cantidad: 1, PrecioUnitario: 500},
		},
		Pagos: []dto.PagoRequest{{Metodo: model.MetodoDebito, Monto: 1500}},
	}
	_, err = ventas.RegistrarVenta(ctx, cajero, req)
	require.Error(t, err)

	var cnt int64
	require.NoError(t, db.Model(&model.Venta{}).Count(&cnt).Error)
	assert.Zero(t, cnt)
	require.NoError(t, db.Model(&model.MovimientoStock{}).Count(&cnt).Error)
	assert.Zero(t, cnt)
	require.NoError(t, db.Model(&model.Contador{}).Count(&cnt).Error)
	assert.Zero(t, cnt)

	// Same request without the unknown product settles and numbers from 1.
	req.Items = req.Items[:1]
	req.Pagos[0].Monto = 1000
	v, err := ventas.RegistrarVenta(ctx, cajero, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.NumeroVenta)

	resumen, err := store.Ventas().ResumenSesion(ctx, uuid.MustParse(ses.ID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), resumen.CantidadVentas)
	assert.Equal(t, int64(1000), resumen.TotalVentas)
	assert.Equal(t, int64(1000), resumen.PagosPorMetodo[model.MetodoDebito])

	cierre, err := cajas.Cerrar(ctx, cajero, dto.CerrarCajaRequest{CajaID: caja.ID.String(), MontoDeclarado: 5000})
	require.NoError(t, err)
	assert.Equal(t, model.EstadoSesionCerrada, cierre.Estado)
	assert.Equal(t, "normal", cierre.Diferencia.Clasificacion)
}
