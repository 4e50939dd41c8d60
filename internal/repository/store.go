package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound               = errors.New("registro no encontrado")
	ErrSesionAbiertaDuplicada = errors.New("la caja ya tiene una sesion abierta")
	ErrSesionNoAbierta        = errors.New("la sesion no esta abierta")
	ErrConflictoConcurrente   = errors.New("stock modificado concurrentemente")
)

// Store groups the repositories that must share a transaction.
//
// WithinTx runs fn against a Store bound to a single transaction: every write
// made through tx commits together when fn returns nil and none of them is
// visible when it returns an error. Calling WithinTx on a Store that is already
// transactional joins the outer transaction.
type Store interface {
	Cajas() CajaRepository
	Stock() StockRepository
	Ventas() VentaRepository
	Contadores() ContadorRepository
	Sucursales() SucursalRepository
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct{ db *gorm.DB }

// NewStore returns the PostgreSQL-backed Store.
func NewStore(db *gorm.DB) Store { return &gormStore{db: db} }

func (s *gormStore) Cajas() CajaRepository { return NewCajaRepository(s.db) }
func (s *gormStore) Stock() StockRepository { return NewStockRepository(s.db) }
func (s *gormStore) Ventas() VentaRepository { return NewVentaRepository(s.db) }
func (s *gormStore) Contadores() ContadorRepository { return NewContadorRepository(s.db) }
func (s *gormStore) Sucursales() SucursalRepository { return NewSucursalRepository(s.db) }

// WithinTx reports deadlocks and serialization failures as
// ErrConflictoConcurrente; the whole transaction was rolled back.
func (s *gormStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
	if isSerializationFailure(err) {
		return fmt.Errorf("%w: %v", ErrConflictoConcurrente, err)
	}
	return err
}

// ── Error translation ─────────────────────────────────────────────────────────

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
