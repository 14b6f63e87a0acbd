package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/sprout/internal/config"
	"github.com/example/sprout/internal/handlers"
	"github.com/example/sprout/internal/middleware"
	"github.com/example/sprout/internal/services"
	"github.com/example/sprout/internal/store"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	telegramService := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	orderStore := store.NewGormOrderStore(db)

	authHandler := handlers.NewAuthHandler(db, cfg)
	productHandler := handlers.NewProductHandler(db)
	orderHandler := handlers.NewOrderHandler(db, orderStore, telegramService)
	profileHandler := handlers.NewProfileHandler(db)
	adminHandler := handlers.NewAdminHandler(db)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthMiddleware(cfg), authHandler.Me)

	// Public catalog
	api.Get("/products", productHandler.ListProducts)
	api.Get("/products/:id", productHandler.GetProduct)

	// Authenticated routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Post("/orders", orderHandler.CreateOrder)
	protected.Get("/orders/my-orders", orderHandler.ListMyOrders)
	protected.Post("/orders/:id/return", orderHandler.CreateReturn)

	protected.Get("/users/profile", profileHandler.GetProfile)
	protected.Put("/users/profile", profileHandler.UpdateProfile)
	protected.Post("/users/wishlist", profileHandler.AddToWishlist)
	protected.Get("/users/wishlist", profileHandler.ListWishlist)
	protected.Delete("/users/wishlist/:id", profileHandler.RemoveFromWishlist)

	// Admin routes
	admin := api.Group("", middleware.AuthMiddleware(cfg), middleware.AdminOnly(db))

	admin.Post("/products", productHandler.CreateProduct)
	admin.Put("/products/:id", productHandler.UpdateProduct)
	admin.Delete("/products/:id", productHandler.DeleteProduct)

	admin.Get("/orders", orderHandler.ListOrders)
	admin.Put("/orders/:id", orderHandler.UpdateOrder)
	admin.Get("/returns", orderHandler.ListReturns)
	admin.Put("/returns/:id", orderHandler.UpdateReturn)

	admin.Get("/admin/stats", adminHandler.DashboardStats)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Put("/users/:id/role", adminHandler.UpdateUserRole)

	// GetOrder comes last so admin collection routes are not shadowed by
	// the :id parameter.
	protected.Get("/orders/:id", orderHandler.GetOrder)
}
