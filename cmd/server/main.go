package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bersapos/internal/config"
	"bersapos/internal/infra"
	"bersapos/internal/notify"
	"bersapos/internal/repository"
	"bersapos/internal/repository/memory"
	"bersapos/internal/router"
	"bersapos/internal/seed"
	"bersapos/internal/service"
	"bersapos/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	// Structured logger. dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Env == "production" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	var (
		store repository.Store
		db    *gorm.DB
	)
	switch cfg.StoreDriver {
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on restart")
		store = memory.New()
		demo, err := seed.Demo(context.Background(), store, service.NewInventarioService(store), seed.DefaultOpciones())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to seed demo data")
		}
		productos := make([]string, len(demo.Productos))
		for i, p := range demo.Productos {
			productos[i] = p.String()
		}
		log.Info().
			Str("sucursal_id", demo.Sucursal.ID.String()).
			Str("codigo", demo.Sucursal.Codigo).
			Str("caja_id", demo.Cajas[0].ID.String()).
			Strs("producto_ids", productos).
			Msg("demo data seeded")
	default:
		db, err = infra.NewDatabase(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		store = repository.NewStore(db)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Events go through the Redis outbox queue; the pool fans them out on
	// pub/sub. Without Redis they are discarded and the core keeps working.
	var (
		pub notify.Publisher = notify.Nop{}
		rdb *redis.Client
	)
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable; notifications disabled")
			rdb = nil
		} else {
			cb := infra.NewCircuitBreaker("notify-redis", infra.DefaultBreakerConfig())
			pub = notify.ConBreaker(worker.NewDispatcher(rdb, cfg.NotifyQueue), cb)

			sink := notify.NewRedisPublisher(rdb, cfg.NotifyChannelPrefix)
			worker.NewPool(rdb, cfg.NotifyQueue, sink).Start(ctx, cfg.WorkerPoolSize)
		}
	}

	r := router.New(cfg, router.Deps{Store: store, Publisher: pub, DB: db, Redis: rdb})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("BersaPOS core listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
