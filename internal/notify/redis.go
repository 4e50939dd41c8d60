package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisPublisher publishes events on "<prefix>:<sucursalID>" pub/sub channels.
type RedisPublisher struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisPublisher(rdb *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, prefix: prefix}
}

// Canal returns the channel name for a branch.
func (p *RedisPublisher) Canal(sucursalID string) string {
	return p.prefix + ":" + sucursalID
}

func (p *RedisPublisher) Publicar(ctx context.Context, ev Evento) error {
	if ev.SucursalID == "" {
		return fmt.Errorf("evento %s sin sucursal", ev.Tipo)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal evento: %w", err)
	}
	return p.rdb.Publish(ctx, p.Canal(ev.SucursalID), data).Err()
}

// Suscribir streams the events of one branch until ctx is cancelled.
// The returned channel is closed when the subscription ends.
func (p *RedisPublisher) Suscribir(ctx context.Context, sucursalID string) (<-chan Evento, error) {
	sub := p.rdb.Subscribe(ctx, p.Canal(sucursalID))
	// Wait for the subscription confirmation so no event published after
	// Suscribir returns can be missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan Evento)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Evento
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn().Err(err).Str("channel", msg.Channel).Msg("notify: payload invalido descartado")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
