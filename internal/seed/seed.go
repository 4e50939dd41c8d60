// Package seed creates demo master data: one branch, its registers and a set
// of products with an opening balance. Used by cmd/seed against Postgres and
// by the server when it runs on the in-memory store.
package seed

import (
	"context"
	"fmt"

	"bersapos/internal/dto"
	"bersapos/internal/model"
	"bersapos/internal/repository"
	"bersapos/internal/service"

	"github.com/google/uuid"
)

type Opciones struct {
	Nombre    string
	Codigo    string
	Cajas     int
	Productos int
	Stock     int64
}

func DefaultOpciones() Opciones {
	return Opciones{Nombre: "Sucursal Demo", Codigo: "DEMO", Cajas: 1, Productos: 5, Stock: 100}
}

// Resultado lists the ids created, for printing or logging.
type Resultado struct {
	Sucursal  model.Sucursal
	Cajas     []model.Caja
	Productos []uuid.UUID
}

func Demo(ctx context.Context, store repository.Store, inventario service.InventarioService, op Opciones) (*Resultado, error) {
	if op.Codigo == "" {
		return nil, fmt.Errorf("codigo de sucursal requerido")
	}
	res := &Resultado{
		Sucursal: model.Sucursal{ID: uuid.New(), Nombre: op.Nombre, Codigo: op.Codigo, Activa: true},
	}
	if err := store.Sucursales().Create(ctx, &res.Sucursal); err != nil {
		return nil, fmt.Errorf("crear sucursal: %w", err)
	}

	for i := 1; i <= op.Cajas; i++ {
		c := model.Caja{ID: uuid.New(), SucursalID: res.Sucursal.ID, Nombre: fmt.Sprintf("Caja %d", i), Activa: true}
		if err := store.Cajas().CreateCaja(ctx, &c); err != nil {
			return nil, fmt.Errorf("crear caja: %w", err)
		}
		res.Cajas = append(res.Cajas, c)
	}

	obs := "carga inicial"
	for i := 0; i < op.Productos; i++ {
		id := uuid.New()
		if err := store.Stock().Provisionar(ctx, id, res.Sucursal.ID); err != nil {
			return nil, fmt.Errorf("provisionar stock: %w", err)
		}
		if op.Stock > 0 {
			_, err := inventario.RegistrarMovimiento(ctx, uuid.Nil, dto.RegistrarMovimientoRequest{
				ProductoID:  id.String(),
				SucursalID:  res.Sucursal.ID.String(),
				Motivo:      string(model.MotivoCompra),
				Cantidad:    op.Stock,
				Observacion: &obs,
			})
			if err != nil {
				return nil, fmt.Errorf("stock inicial: %w", err)
			}
		}
		res.Productos = append(res.Productos, id)
	}
	return res, nil
}
