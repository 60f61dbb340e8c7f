package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine      *inventory.Engine
	JWTSecret   string
	ServiceName string
	Gatherer    prometheus.Gatherer // nil = sin /metrics
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.ServiceName})
	})
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	readers := RequireRole(RoleAdmin, RoleBodeguero, RoleConsulta)
	writers := RequireRole(RoleAdmin, RoleBodeguero)

	// Stock: comandos
	stock := protected.Group("/stock")
	stockHandler := NewStockHandler(deps.Engine.Stock)
	stock.Post("/receipts", writers, stockHandler.Receive)
	stock.Post("/issues", writers, stockHandler.Issue)
	stock.Post("/transfers", writers, stockHandler.Transfer)
	stock.Post("/adjustments", writers, stockHandler.Adjust)

	// Stock: consultas
	queryHandler := NewQueryHandler(deps.Engine.Query)
	stock.Get("/levels", readers, queryHandler.Levels)
	stock.Get("/available", readers, queryHandler.Available)
	stock.Get("/summary/:productId", readers, queryHandler.Summary)
	stock.Get("/low-stock/:productId", readers, queryHandler.LowStock)
	stock.Get("/movements", readers, queryHandler.Movements)

	// Reservas
	reservations := protected.Group("/reservations")
	reservationHandler := NewReservationHandler(deps.Engine.Reservations)
	reservations.Post("/", writers, reservationHandler.Create)
	reservations.Get("/", readers, reservationHandler.ListByReference)
	reservations.Get("/:id", readers, reservationHandler.GetByID)
	reservations.Post("/:id/release", writers, reservationHandler.Release)
	reservations.Post("/:id/consume", writers, reservationHandler.Consume)
}
