// Package notify fans out register and sale events to every terminal of a
// branch. Delivery is best-effort: callers publish after their transaction
// commits and a failed publish never undoes the committed change.
package notify

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

type TipoEvento string

const (
	EventoCajaAbierta     TipoEvento = "SESSION_OPENED"
	EventoCajaCerrada     TipoEvento = "SESSION_CLOSED"
	EventoVentaRegistrada TipoEvento = "SALE_SETTLED"
)

// Evento is the payload delivered to subscribers of a branch channel.
type Evento struct {
	Tipo            TipoEvento `json:"type"`
	SucursalID      string     `json:"sucursal_id"`
	CajaID          string     `json:"caja_id,omitempty"`
	SesionCajaID    string     `json:"sesion_caja_id,omitempty"`
	VentaID         string     `json:"venta_id,omitempty"`
	Folio           string     `json:"folio,omitempty"`
	OrigenUsuarioID string     `json:"origen_usuario_id,omitempty"`
	OcurridoEn      time.Time  `json:"ocurrido_en"`
}

// Publisher delivers an event to the channel of ev.SucursalID.
type Publisher interface {
	Publicar(ctx context.Context, ev Evento) error
}

// Nop discards every event. Used when Redis is not configured.
type Nop struct{}

func (Nop) Publicar(context.Context, Evento) error { return nil }

type breakerPublisher struct {
	next Publisher
	cb   *gobreaker.CircuitBreaker
}

// ConBreaker wraps p so that once the breaker opens, publishes fail
// immediately with gobreaker.ErrOpenState until it half-opens again.
func ConBreaker(p Publisher, cb *gobreaker.CircuitBreaker) Publisher {
	return &breakerPublisher{next: p, cb: cb}
}

func (b *breakerPublisher) Publicar(ctx context.Context, ev Evento) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Publicar(ctx, ev)
	})
	return err
}
