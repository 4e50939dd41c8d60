package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"bersapos/internal/apierror"
	"bersapos/internal/metrics"
	"bersapos/internal/notify"
	"bersapos/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseID(campo, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apierror.Validation(apierror.CodeInvalidID, fmt.Sprintf("%s invalido", campo)).
			WithField(campo, raw)
	}
	return id, nil
}

// publicar delivers ev best-effort. Called after commit; a failure is logged
// and counted but never surfaces to the caller.
func publicar(ctx context.Context, pub notify.Publisher, ev notify.Evento) {
	if pub == nil {
		return
	}
	ev.OcurridoEn = time.Now().UTC()
	if err := pub.Publicar(ctx, ev); err != nil {
		metrics.EventosFallidos.WithLabelValues(string(ev.Tipo)).Inc()
		log.Warn().Err(err).
			Str("type", string(ev.Tipo)).
			Str("sucursal_id", ev.SucursalID).
			Msg("no se pudo publicar evento")
	}
}

// sumar and multiplicar report false instead of wrapping past the int64 range.
func sumar(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}

func multiplicar(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	if c/b != a {
		return 0, false
	}
	return c, true
}

// conflictoConcurrente turns a lost optimistic write or an aborted
// transaction into CONCURRENT_UPDATE. Other errors pass through.
func conflictoConcurrente(err error) error {
	if errors.Is(err, repository.ErrConflictoConcurrente) {
		return apierror.Conflict(apierror.CodeConcurrentUpdate, "el stock fue modificado concurrentemente, reintente")
	}
	return err
}
