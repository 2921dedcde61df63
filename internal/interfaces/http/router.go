package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/usecase"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	ProductUC  *usecase.ProductUseCase
	LocationUC *usecase.LocationUseCase
	Ledger     *inventory.LedgerUseCase
	JWTSecret  string
	Logger     *logger.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	anyRole := RequireRole(RoleAdmin, RoleBodeguero, RoleConsulta)
	operators := RequireRole(RoleAdmin, RoleBodeguero)
	admins := RequireRole(RoleAdmin)

	// Products
	products := protected.Group("/products")
	productHandler := NewProductHandler(deps.ProductUC, deps.Logger)
	products.Post("/", admins, productHandler.Create)
	products.Get("/", anyRole, productHandler.List)
	products.Get("/:id", anyRole, productHandler.GetByID)
	products.Put("/:id", admins, productHandler.Update)

	// Locations
	locations := protected.Group("/locations")
	locationHandler := NewLocationHandler(deps.LocationUC, deps.Logger)
	locations.Post("/", admins, locationHandler.Create)
	locations.Get("/", anyRole, locationHandler.List)
	locations.Get("/:id", anyRole, locationHandler.GetByID)
	locations.Put("/:id", admins, locationHandler.Update)

	// Libro de existencias
	inventoryHandler := NewInventoryHandler(deps.Ledger, deps.Logger)
	movements := protected.Group("/movements")
	movements.Post("/receipts", operators, inventoryHandler.Receive)
	movements.Post("/shipments", operators, inventoryHandler.Ship)
	movements.Post("/transfers", operators, inventoryHandler.Transfer)
	movements.Post("/adjustments", operators, inventoryHandler.Adjust)
	movements.Get("/:id", anyRole, inventoryHandler.GetMovement)
	protected.Get("/stock", anyRole, inventoryHandler.ListStock)
}
