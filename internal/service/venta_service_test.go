package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"sync"
	"testing"

	"bersapos/internal/apierror"
	"bersapos/internal/dto"
	"bersapos/internal/model"
	"bersapos/internal/notify"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var folioRe = regexp.MustCompile(`^SCL-\d{8}-\d{6}$`)

func TestRegistrarVenta_EfectivoRedondea(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	a := f.producto(t, 10)
	b := f.producto(t, 10)

	// 2*1000 + 1*1001 = 3001, cash only: charged 3010
	v, err := f.vender(sesion,
		[]dto.ItemVentaRequest{item(a, 2, 1000), item(b, 1, 1001)},
		pago(model.MetodoEfectivo, 3010))
	require.NoError(t, err)

	assert.Equal(t, int64(3001), v.Total)
	assert.Equal(t, int64(9), v.AjusteRedondeo)
	assert.Equal(t, int64(3010), v.TotalCobrado)
	assert.Equal(t, int64(1), v.NumeroVenta)
	assert.Regexp(t, folioRe, v.Folio)
	assert.Equal(t, model.DocumentoBoleta, v.TipoDocumento)
	assert.Equal(t, model.EstadoVentaFinalizada, v.Estado)
	require.Len(t, v.Items, 2)
	assert.Equal(t, int64(2000), v.Items[0].Subtotal)

	assert.Equal(t, int64(8), f.saldo(t, a))
	assert.Equal(t, int64(9), f.saldo(t, b))

	kardex, err := f.inventario.Kardex(context.Background(), a, f.sucursalID, 0)
	require.NoError(t, err)
	require.Len(t, kardex, 2)
	venta := kardex[1]
	assert.Equal(t, string(model.MotivoVenta), venta.Motivo)
	assert.Equal(t, "OUT", venta.Direccion)
	require.NotNil(t, venta.ReferenciaID)
	assert.Equal(t, v.ID, *venta.ReferenciaID)
	assert.Equal(t, model.ReferenciaVenta, *venta.ReferenciaTipo)

	assert.Contains(t, f.pub.tipos(), notify.EventoVentaRegistrada)
}

func TestRegistrarVenta_Redondeo(t *testing.T) {
	cases := []struct {
		name   string
		total  int64
		pagos  []dto.PagoRequest
		ajuste int64
	}{
		{"efectivo multiplo de 10", 3000, []dto.PagoRequest{pago(model.MetodoEfectivo, 3000)}, 0},
		{"efectivo sube al siguiente 10", 3001, []dto.PagoRequest{pago(model.MetodoEfectivo, 3010)}, 9},
		{"efectivo termina en 5", 995, []dto.PagoRequest{pago(model.MetodoEfectivo, 1000)}, 5},
		{"debito exacto", 3001, []dto.PagoRequest{pago(model.MetodoDebito, 3001)}, 0},
		{"mixto exacto", 3001, []dto.PagoRequest{pago(model.MetodoEfectivo, 1001), pago(model.MetodoCredito, 2000)}, 0},
		{"dos pagos en efectivo", 3001, []dto.PagoRequest{pago(model.MetodoEfectivo, 1000), pago(model.MetodoEfectivo, 2001)}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			sesion := f.abrir(t, 0)
			prod := f.producto(t, 1)

			v, err := f.vender(sesion, []dto.ItemVentaRequest{item(prod, 1, tc.total)}, tc.pagos...)
			require.NoError(t, err)
			assert.Equal(t, tc.ajuste, v.AjusteRedondeo)
			assert.Equal(t, tc.total+tc.ajuste, v.TotalCobrado)

			var suma int64
			for _, p := range v.Pagos {
				suma += p.Monto
			}
			assert.Equal(t, v.TotalCobrado, suma)
		})
	}
}

func TestRegistrarVenta_PagoNoCuadra(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	prod := f.producto(t, 10)

	_, err := f.vender(sesion, []dto.ItemVentaRequest{item(prod, 1, 3001)}, pago(model.MetodoEfectivo, 3001))
	requireCode(t, err, apierror.CodePaymentMismatch)
	e, _ := apierror.As(err)
	assert.Equal(t, apierror.KindConflict, e.Kind)
	assert.Equal(t, "3010", e.Fields["esperado"])
	assert.Equal(t, "3001", e.Fields["recibido"])

	// overpayment is rejected too
	_, err = f.vender(sesion, []dto.ItemVentaRequest{item(prod, 1, 3001)}, pago(model.MetodoDebito, 3100))
	requireCode(t, err, apierror.CodePaymentMismatch)

	assertSinEfectos(t, f, prod, 10)
}

func TestRegistrarVenta_Validaciones(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	prod := f.producto(t, 10)

	_, err := f.vender(sesion, nil, pago(model.MetodoEfectivo, 10))
	requireCode(t, err, apierror.CodeEmptySale)

	_, err = f.vender(sesion, []dto.ItemVentaRequest{item(prod, 0, 10)}, pago(model.MetodoDebito, 10))
	requireCode(t, err, apierror.CodeInvalidQuantity)

	_, err = f.vender(sesion, []dto.ItemVentaRequest{item(prod, 1, -10)}, pago(model.MetodoDebito, 10))
	requireCode(t, err, apierror.CodeInvalidAmount)

	_, err = f.vender(sesion, []dto.ItemVentaRequest{item(prod, 1, 10)})
	requireCode(t, err, apierror.CodeInvalidInput)

	_, err = f.vender(sesion, []dto.ItemVentaRequest{item(prod, 1, 10)}, pago("CHEQUE", 10))
	requireCode(t, err, apierror.CodeInvalidInput)

	assertSinEfectos(t, f, prod, 10)
}

func TestRegistrarVenta_SesionNoAbierta(t *testing.T) {
	f := newFixture(t)
	prod := f.producto(t, 10)

	_, err := f.vender(uuid.New(), []dto.ItemVentaRequest{item(prod, 1, 10)}, pago(model.MetodoDebito, 10))
	requireCode(t, err, apierror.CodeSessionNotOpen)

	sesion := f.abrir(t, 0)
	_, err = f.ventas.RegistrarVenta(context.Background(), f.cajero, dto.RegistrarVentaRequest{
		CajaID:       uuid.NewString(),
		SesionCajaID: sesion.String(),
		Items:        []dto.ItemVentaRequest{item(prod, 1, 10)},
		Pagos:        []dto.PagoRequest{pago(model.MetodoDebito, 10)},
	})
	requireCode(t, err, apierror.CodeSessionNotOpen)

	_, err = f.caja.Cerrar(context.Background(), f.cajero, dto.CerrarCajaRequest{CajaID: f.cajaID.String()})
	require.NoError(t, err)

	_, err = f.vender(sesion, []dto.ItemVentaRequest{item(prod, 1, 10)}, pago(model.MetodoDebito, 10))
	requireCode(t, err, apierror.CodeSessionNotOpen)
	assertSinEfectos(t, f, prod, 10)
}

func TestRegistrarVenta_ProductoNoVendible(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	ok := f.producto(t, 10)
	off := f.producto(t, 10)
	require.NoError(t, f.store.Stock().SetHabilitado(context.Background(), off, f.sucursalID, false))

	_, err := f.vender(sesion,
		[]dto.ItemVentaRequest{item(ok, 1, 100), item(off, 1, 100)},
		pago(model.MetodoDebito, 200))
	requireCode(t, err, apierror.CodeProductNotSellable)
	e, _ := apierror.As(err)
	assert.Equal(t, off.String(), e.Fields["producto_id"])

	_, err = f.vender(sesion, []dto.ItemVentaRequest{item(uuid.New(), 1, 100)}, pago(model.MetodoDebito, 100))
	requireCode(t, err, apierror.CodeProductNotSellable)

	assertSinEfectos(t, f, ok, 10)
}

func TestRegistrarVenta_FalloAMitadRevierteTodo(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	a := f.producto(t, 10)
	b := f.producto(t, 10)

	// second ledger post of the sale fails
	f.wire(fallaStore{Store: f.store, cnt: &fallaContador{fallarEn: 2}})
	_, err := f.vender(sesion,
		[]dto.ItemVentaRequest{item(a, 1, 100), item(b, 1, 100)},
		pago(model.MetodoDebito, 200))
	require.ErrorIs(t, err, errDiscoLleno)

	dump := f.store.Dump()
	assert.Empty(t, dump.Ventas)
	assert.Empty(t, dump.Pagos)
	assert.Equal(t, int64(10), f.saldo(t, a))
	assert.Equal(t, int64(10), f.saldo(t, b))
	for k := range dump.Contadores {
		assert.NotContains(t, k, "venta:", "contador consumido por venta revertida")
		assert.NotContains(t, k, "folio:", "contador consumido por venta revertida")
	}

	// the next sale still gets the first number
	f.wire(f.store)
	v, err := f.vender(sesion, []dto.ItemVentaRequest{item(a, 1, 100)}, pago(model.MetodoDebito, 100))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.NumeroVenta)
	assert.Contains(t, v.Folio, "-000001")
}

func TestRegistrarVenta_ConcurrenteMismoProducto(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	prod := f.producto(t, 100)
	const n = 20

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ventas []*dto.VentaResponse
	)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.vender(sesion, []dto.ItemVentaRequest{item(prod, 2, 500)}, pago(model.MetodoCredito, 1000))
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			ventas = append(ventas, v)
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, ventas, n)
	numeros := make(map[int64]bool)
	folios := make(map[string]bool)
	for _, v := range ventas {
		numeros[v.NumeroVenta] = true
		folios[v.Folio] = true
	}
	for i := int64(1); i <= n; i++ {
		assert.True(t, numeros[i], "numero %d", i)
	}
	assert.Len(t, folios, n)

	assert.Equal(t, int64(100-2*n), f.saldo(t, prod))
	kardex, err := f.inventario.Kardex(context.Background(), prod, f.sucursalID, 0)
	require.NoError(t, err)
	require.Len(t, kardex, n+1)
	requireCadena(t, kardex)
}

func TestRegistrarVenta_FalloDeNotificacionNoAfecta(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	prod := f.producto(t, 10)
	f.pub.err = errors.New("redis down")

	v, err := f.vender(sesion, []dto.ItemVentaRequest{item(prod, 1, 10)}, pago(model.MetodoTransferencia, 10))
	require.NoError(t, err)
	assert.NotEmpty(t, v.Folio)
	assert.Equal(t, int64(9), f.saldo(t, prod))
}

func TestRegistrarVenta_FacturaYNumeracion(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	prod := f.producto(t, 10)

	for i := 1; i <= 3; i++ {
		v, err := f.ventas.RegistrarVenta(context.Background(), f.cajero, dto.RegistrarVentaRequest{
			CajaID:        f.cajaID.String(),
			SesionCajaID:  sesion.String(),
			Items:         []dto.ItemVentaRequest{item(prod, 1, 10)},
			Pagos:         []dto.PagoRequest{pago(model.MetodoDebito, 10)},
			TipoDocumento: model.DocumentoFactura,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i), v.NumeroVenta)
		assert.Equal(t, model.DocumentoFactura, v.TipoDocumento)
		assert.Contains(t, v.Folio, fmt.Sprintf("-%06d", i))
	}
}

func TestObtenerVenta(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	prod := f.producto(t, 10)

	v, err := f.vender(sesion, []dto.ItemVentaRequest{item(prod, 3, 333)}, pago(model.MetodoEfectivo, 1000))
	require.NoError(t, err)

	got, err := f.ventas.ObtenerVenta(context.Background(), uuid.MustParse(v.ID))
	require.NoError(t, err)
	assert.Equal(t, v.Folio, got.Folio)
	require.Len(t, got.Pagos, 1)
	assert.Equal(t, int64(1000), got.Pagos[0].Monto)
	assert.Equal(t, int64(1), got.AjusteRedondeo)

	_, err = f.ventas.ObtenerVenta(context.Background(), uuid.New())
	requireCode(t, err, apierror.CodeSaleNotFound)
}

func TestRegistrarVenta_MontosFueraDeRango(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	prod := f.producto(t, 10)

	tests := []struct {
		name  string
		items []dto.ItemVentaRequest
		pagos []dto.PagoRequest
	}{
		{
			name:  "subtotal desborda",
			items: []dto.ItemVentaRequest{item(prod, 1<<62+1, 4)},
			pagos: []dto.PagoRequest{pago(model.MetodoDebito, 4)},
		},
		{
			name:  "total desborda",
			items: []dto.ItemVentaRequest{item(prod, 1, math.MaxInt64), item(prod, 1, 1)},
			pagos: []dto.PagoRequest{pago(model.MetodoDebito, 1)},
		},
		{
			name:  "suma de pagos desborda",
			items: []dto.ItemVentaRequest{item(prod, 1, 100)},
			pagos: []dto.PagoRequest{pago(model.MetodoDebito, math.MaxInt64), pago(model.MetodoCredito, 101)},
		},
		{
			name:  "redondeo desborda",
			items: []dto.ItemVentaRequest{item(prod, 1, math.MaxInt64)},
			pagos: []dto.PagoRequest{pago(model.MetodoEfectivo, math.MaxInt64)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.vender(sesion, tt.items, tt.pagos...)
			requireCode(t, err, apierror.CodeInvalidAmount)
			assert.Equal(t, apierror.KindValidation, mustKind(t, err))
		})
	}
	assertSinEfectos(t, f, prod, 10)
}

func TestRegistrarVenta_DescuentaStockEnOrdenDeProducto(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	prods := []uuid.UUID{f.producto(t, 10), f.producto(t, 10), f.producto(t, 10)}
	sort.Slice(prods, func(i, j int) bool { return bytes.Compare(prods[i][:], prods[j][:]) > 0 })

	reg := &registro{}
	f.wire(registroStore{Store: f.store, reg: reg})
	v, err := f.vender(sesion,
		[]dto.ItemVentaRequest{item(prods[0], 1, 100), item(prods[1], 1, 100), item(prods[2], 1, 100)},
		pago(model.MetodoDebito, 300))
	require.NoError(t, err)

	require.Len(t, reg.productos, 3)
	assert.Equal(t, []uuid.UUID{prods[2], prods[1], prods[0]}, reg.productos)
	// the sale keeps the order it was rung up in
	assert.Equal(t, prods[0].String(), v.Items[0].ProductoID)
	assert.Equal(t, prods[2].String(), v.Items[2].ProductoID)
}

func TestRegistrarVenta_TransaccionAbortadaEsConflicto(t *testing.T) {
	f := newFixture(t)
	sesion := f.abrir(t, 0)
	prod := f.producto(t, 10)

	f.wire(abortaStore{Store: f.store})
	_, err := f.vender(sesion, []dto.ItemVentaRequest{item(prod, 1, 100)}, pago(model.MetodoDebito, 100))
	requireCode(t, err, apierror.CodeConcurrentUpdate)
	assert.Equal(t, apierror.KindConflict, mustKind(t, err))
	assertSinEfectos(t, f, prod, 10)
}

// assertSinEfectos checks that no sale, payment or counter was written and
// the product balance is unchanged.
func assertSinEfectos(t *testing.T, f *fixture, prod uuid.UUID, saldo int64) {
	t.Helper()
	dump := f.store.Dump()
	assert.Empty(t, dump.Ventas)
	assert.Empty(t, dump.Pagos)
	assert.Empty(t, dump.Contadores)
	assert.Equal(t, saldo, f.saldo(t, prod))
}
