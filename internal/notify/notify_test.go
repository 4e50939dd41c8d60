package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bersapos/internal/infra"
	"bersapos/internal/notify"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher_EntregaASuscriptoresDeLaSucursal(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	pub := notify.NewRedisPublisher(rdb, "pos:eventos")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	eventos, err := pub.Suscribir(ctx, "suc-1")
	require.NoError(t, err)

	require.NoError(t, pub.Publicar(ctx, notify.Evento{Tipo: notify.EventoCajaCerrada, SucursalID: "suc-2"}))
	require.NoError(t, pub.Publicar(ctx, notify.Evento{
		Tipo:       notify.EventoCajaAbierta,
		SucursalID: "suc-1",
		CajaID:     "caja-9",
	}))

	select {
	case ev := <-eventos:
		assert.Equal(t, notify.EventoCajaAbierta, ev.Tipo)
		assert.Equal(t, "caja-9", ev.CajaID)
	case <-ctx.Done():
		t.Fatal("evento no recibido")
	}
}

func TestRedisPublisher_RechazaEventoSinSucursal(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	err := notify.NewRedisPublisher(rdb, "p").Publicar(context.Background(), notify.Evento{Tipo: notify.EventoCajaAbierta})
	assert.Error(t, err)
}

type failing struct{ calls int }

func (f *failing) Publicar(context.Context, notify.Evento) error {
	f.calls++
	return errors.New("redis down")
}

func TestConBreaker_AbreTrasFallosConsecutivos(t *testing.T) {
	inner := &failing{}
	cb := infra.NewCircuitBreaker("test", infra.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute})
	pub := notify.ConBreaker(inner, cb)

	ev := notify.Evento{Tipo: notify.EventoVentaRegistrada, SucursalID: "s"}
	assert.Error(t, pub.Publicar(context.Background(), ev))
	assert.Error(t, pub.Publicar(context.Background(), ev))

	err := pub.Publicar(context.Background(), ev)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls)
}
