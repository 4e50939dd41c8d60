package router

import (
	"time"

	"bersapos/internal/authz"
	"bersapos/internal/config"
	"bersapos/internal/handler"
	"bersapos/internal/middleware"
	"bersapos/internal/notify"
	"bersapos/internal/repository"
	"bersapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators built by the composition root. DB and Redis are
// optional and only feed the health check.
type Deps struct {
	Store     repository.Store
	Publisher notify.Publisher
	DB        *gorm.DB
	Redis     *redis.Client
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Store ← DB
func New(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	pub := deps.Publisher
	if pub == nil {
		pub = notify.Nop{}
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Services ─────────────────────────────────────────────────────────────
	inventarioSvc := service.NewInventarioService(deps.Store)
	folioSvc := service.NewFolioService(cfg.Location())
	cajaSvc := service.NewCajaService(deps.Store, pub)
	ventaSvc := service.NewVentaService(deps.Store, inventarioSvc, folioSvc, pub)

	// ── Handlers ─────────────────────────────────────────────────────────────
	cajaH := handler.NewCajaHandler(cajaSvc)
	ventasH := handler.NewVentasHandler(ventaSvc)
	inventarioH := handler.NewInventarioHandler(inventarioSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(deps.DB, deps.Redis))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		cajas := v1.Group("/cajas")
		{
			cajas.POST("/:id/abrir", middleware.RequirePermiso(authz.AccionAbrirCaja), cajaH.Abrir)
			cajas.GET("/:id/resumen", middleware.RequirePermiso(authz.AccionResumenCaja), cajaH.Resumen)
			// Role is also enforced inside CajaService.Cerrar.
			cajas.POST("/:id/cerrar", middleware.RequirePermiso(authz.AccionCerrarCaja), cajaH.Cerrar)
		}
		v1.GET("/sesiones-caja/:id", middleware.RequirePermiso(authz.AccionResumenCaja), cajaH.ObtenerSesion)

		v1.POST("/ventas", middleware.RequirePermiso(authz.AccionRegistrarVenta), ventasH.RegistrarVenta)
		v1.GET("/ventas/:id", middleware.RequirePermiso(authz.AccionVerVenta), ventasH.ObtenerVenta)

		inv := v1.Group("/inventario")
		{
			inv.POST("/movimientos", middleware.RequirePermiso(authz.AccionMovimientoStock), inventarioH.RegistrarMovimiento)
			inv.GET("/kardex", middleware.RequirePermiso(authz.AccionVerKardex), inventarioH.Kardex)
		}
	}

	return r
}
