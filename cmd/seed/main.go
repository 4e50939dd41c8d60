// cmd/seed/main.go: Crea una sucursal de demo con sus cajas y provisiona stock.
// Uso: go run ./cmd/seed -codigo SCL -cajas 2 -productos 5 -stock 50
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bersapos/internal/config"
	"bersapos/internal/infra"
	"bersapos/internal/repository"
	"bersapos/internal/seed"
	"bersapos/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	op := seed.Opciones{}
	flag.StringVar(&op.Nombre, "nombre", "Sucursal Demo", "nombre de la sucursal")
	flag.StringVar(&op.Codigo, "codigo", "DEMO", "prefijo de folio de la sucursal")
	flag.IntVar(&op.Cajas, "cajas", 1, "cantidad de cajas a crear")
	flag.IntVar(&op.Productos, "productos", 0, "productos a provisionar con stock inicial")
	flag.Int64Var(&op.Stock, "stock", 0, "stock inicial por producto")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	// NewDatabase applies migrations.
	db, err := infra.NewDatabase(cfg.DatabaseURL, 2, 1)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	store := repository.NewStore(db)
	res, err := seed.Demo(context.Background(), store, service.NewInventarioService(store), op)
	if err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}

	fmt.Printf("sucursal %s (%s)\n", res.Sucursal.ID, res.Sucursal.Codigo)
	for _, c := range res.Cajas {
		fmt.Printf("caja     %s (%s)\n", c.ID, c.Nombre)
	}
	for _, p := range res.Productos {
		fmt.Printf("producto %s stock=%d\n", p, op.Stock)
	}
}
