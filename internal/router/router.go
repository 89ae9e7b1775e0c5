package router

import (
	"context"
	"time"

	"vendapos/internal/config"
	"vendapos/internal/handler"
	"vendapos/internal/middleware"
	"vendapos/internal/realtime"
	"vendapos/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
)

// Deps are the services built by the composition root.
type Deps struct {
	Products service.ProductService
	Orders   service.OrderService
	Tables   service.TableService
	Caja     service.CajaService
	Cashback service.CashbackService
	Bus      *realtime.Bus
	Health   handler.HealthDeps
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/local store
func New(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigin))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(ctx, 1000, time.Minute)) // 1000 req/min per IP

	// ── Handlers ─────────────────────────────────────────────────────────────
	productsH := handler.NewProductsHandler(d.Products)
	ordersH := handler.NewOrdersHandler(d.Orders, d.Caja)
	tablesH := handler.NewTablesHandler(d.Tables)
	cajaH := handler.NewCajaHandler(d.Caja)
	cashbackH := handler.NewCashbackHandler(d.Cashback)
	eventsH := handler.NewEventsHandler(d.Bus)
	receiptsH := handler.NewReceiptsHandler(d.Health.Redis)

	// ── Routes ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(d.Health))

	v1 := r.Group("/v1")
	{
		v1.POST("/settlement/quote", handler.Quote)

		prods := v1.Group("/products")
		{
			prods.POST("", productsH.Create)
			prods.GET("", productsH.List)
			prods.GET("/:id", productsH.Get)
			prods.PUT("/:id", productsH.Update)
		}

		orders := v1.Group("/orders")
		{
			orders.POST("", ordersH.Create)
			orders.GET("", ordersH.List)
			orders.POST("/reconcile", ordersH.Reconcile)
			orders.GET("/:id", ordersH.Get)
			orders.PATCH("/:id/status", ordersH.UpdateStatus)
			orders.POST("/:id/alert/ack", eventsH.AckAlert)
		}

		tables := v1.Group("/tables")
		{
			tables.POST("", tablesH.Create)
			tables.GET("", tablesH.List)
			tables.GET("/:id/sale", tablesH.GetSale)
			tables.POST("/:id/open", tablesH.Open)
			tables.POST("/:id/bill", tablesH.RequestBill)
			tables.POST("/:id/items", tablesH.AddItem)
			tables.DELETE("/:id/items/:item_id", tablesH.DeleteItem)
			tables.POST("/:id/close", tablesH.Close)
			tables.POST("/:id/cancel", tablesH.Cancel)
			tables.POST("/:id/free", tablesH.Free)
		}

		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", cajaH.Open)
			caja.POST("/fechar", cajaH.Close)
			caja.POST("/movimento", cajaH.Movement)
			caja.GET("/atual", cajaH.Current)
			caja.GET("/historico", cajaH.History)
			caja.GET("/:id/relatorio", cajaH.Report)
		}

		v1.GET("/cashback/:phone", cashbackH.Statement)

		receipts := v1.Group("/receipts")
		{
			receipts.GET("/dlq", receiptsH.DLQ)
			receipts.POST("/dlq/requeue", receiptsH.Requeue)
		}

		live := v1.Group("/live")
		{
			live.GET("/orders", eventsH.LiveOrders)
			live.GET("/tables", eventsH.LiveTables)
		}
		v1.GET("/events", eventsH.Stream)
	}

	// Swagger UI outside production only
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
