package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bersapos/internal/metrics"
	"bersapos/internal/notify"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueEventos = "jobs:eventos"

	jobTypeEvento = "evento"
	maxAttempts   = 3
)

// Job is the generic envelope for queued tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Dispatcher enqueues events into a Redis list; it implements
// notify.Publisher so services hand off delivery without waiting on
// subscribers. The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb   *redis.Client
	queue string
}

var _ notify.Publisher = (*Dispatcher)(nil)

func NewDispatcher(rdb *redis.Client, queue string) *Dispatcher {
	if queue == "" {
		queue = QueueEventos
	}
	return &Dispatcher{rdb: rdb, queue: queue}
}

func (d *Dispatcher) Publicar(ctx context.Context, ev notify.Evento) error {
	return d.enqueue(ctx, Job{Type: jobTypeEvento}, ev)
}

func (d *Dispatcher) enqueue(ctx context.Context, job Job, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job.Payload = data
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, d.queue, encoded).Err()
}

// Pool forwards queued events to sink, retrying failed deliveries up to
// maxAttempts before moving them to the DLQ.
type Pool struct {
	rdb   *redis.Client
	queue string
	sink  notify.Publisher
	// Wait bounds each BRPOP so workers notice ctx cancellation.
	Wait time.Duration
}

func NewPool(rdb *redis.Client, queue string, sink notify.Publisher) *Pool {
	if queue == "" {
		queue = QueueEventos
	}
	return &Pool{rdb: rdb, queue: queue, sink: sink, Wait: 5 * time.Second}
}

// Start launches numWorkers goroutines. Each blocks on BRPOP; zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Str("queue", p.queue).Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			if _, err := p.ProcessNext(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Int("worker", id).Msg("worker: redis error")
				time.Sleep(time.Second)
			}
		}
	}
}

// ProcessNext pops and handles one job. It returns false when the wait
// elapsed with the queue empty.
func (p *Pool) ProcessNext(ctx context.Context) (bool, error) {
	result, err := p.rdb.BRPop(ctx, p.Wait, p.queue).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(result) < 2 {
		return false, nil
	}
	p.processJob(ctx, result[1])
	return true, nil
}

func (p *Pool) processJob(ctx context.Context, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		quoted, _ := json.Marshal(raw)
		SendToDLQ(ctx, p.rdb, p.queue, "desconocido", quoted, "unmarshal: "+err.Error(), 0)
		return
	}
	if job.Type != jobTypeEvento {
		SendToDLQ(ctx, p.rdb, p.queue, job.Type, job.Payload, "tipo de job desconocido", job.Attempts)
		return
	}

	var ev notify.Evento
	if err := json.Unmarshal(job.Payload, &ev); err != nil {
		SendToDLQ(ctx, p.rdb, p.queue, job.Type, job.Payload, "payload invalido: "+err.Error(), job.Attempts)
		return
	}

	if err := p.sink.Publicar(ctx, ev); err != nil {
		job.Attempts++
		metrics.EventosFallidos.WithLabelValues(string(ev.Tipo)).Inc()
		if job.Attempts >= maxAttempts {
			SendToDLQ(ctx, p.rdb, p.queue, job.Type, job.Payload, err.Error(), job.Attempts)
			return
		}
		encoded, mErr := json.Marshal(job)
		if mErr == nil {
			mErr = p.rdb.LPush(ctx, p.queue, encoded).Err()
		}
		if mErr != nil {
			log.Error().Err(mErr).Str("queue", p.queue).Msg("worker: no se pudo reencolar evento")
		}
		return
	}
	log.Debug().Str("type", string(ev.Tipo)).Str("sucursal_id", ev.SucursalID).Msg("evento publicado")
}
