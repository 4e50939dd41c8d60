package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bersapos/internal/apierror"
	"bersapos/internal/repository"

	"github.com/google/uuid"
)

// FolioService issues sale numbers and printable folios. Both draw from
// counters inside the caller's transaction, so a rolled-back sale releases
// its numbers and the sequences stay gap-free among committed sales.
type FolioService interface {
	// SiguienteNumeroVenta returns 1, 2, 3... per session.
	SiguienteNumeroVenta(ctx context.Context, tx repository.Store, sesionID uuid.UUID) (int64, error)
	// SiguienteFolio returns "<CODIGO>-<YYYYMMDD>-<NNNNNN>"; the counter
	// restarts each business day per branch.
	SiguienteFolio(ctx context.Context, tx repository.Store, sucursalID uuid.UUID, fecha time.Time) (string, error)
}

type folioService struct {
	loc *time.Location
}

// NewFolioService uses loc to decide which business day a sale belongs to.
func NewFolioService(loc *time.Location) FolioService {
	if loc == nil {
		loc = time.UTC
	}
	return &folioService{loc: loc}
}

func (s *folioService) SiguienteNumeroVenta(ctx context.Context, tx repository.Store, sesionID uuid.UUID) (int64, error) {
	n, err := tx.Contadores().Incrementar(ctx, "venta:"+sesionID.String())
	if err != nil {
		return 0, fmt.Errorf("numero de venta: %w", err)
	}
	return n, nil
}

func (s *folioService) SiguienteFolio(ctx context.Context, tx repository.Store, sucursalID uuid.UUID, fecha time.Time) (string, error) {
	suc, err := tx.Sucursales().FindByID(ctx, sucursalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apierror.Domain(apierror.CodeBranchCodeMissing, "sucursal desconocida, no se puede emitir folio")
		}
		return "", err
	}
	if suc.Codigo == "" {
		return "", apierror.Domain(apierror.CodeBranchCodeMissing, "la sucursal no tiene codigo de folio")
	}

	dia := fecha.In(s.loc).Format("20060102")
	n, err := tx.Contadores().Incrementar(ctx, "folio:"+sucursalID.String()+":"+dia)
	if err != nil {
		return "", fmt.Errorf("folio: %w", err)
	}
	return fmt.Sprintf("%s-%s-%06d", suc.Codigo, dia, n), nil
}
