package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/vitrine/internal/cache"
	"github.com/example/vitrine/internal/cart"
	"github.com/example/vitrine/internal/config"
	"github.com/example/vitrine/internal/handlers"
	"github.com/example/vitrine/internal/middleware"
	"github.com/example/vitrine/internal/services"
	"github.com/example/vitrine/internal/storage"
)

// Deps carries the long-lived collaborators built in main.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Cache    *cache.QueryCache
	Logger   *zap.Logger
	Uploader storage.Uploader
	Pix      services.PixGateway
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, deps Deps) error {
	db, cfg, qc, log := deps.DB, deps.Config, deps.Cache, deps.Logger

	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log.Named("telegram"))
	storeConfig := services.NewStoreConfigService(db, qc)

	carts, err := cart.NewService(cart.ServiceDeps{
		Store:       services.NewCartRepository(db),
		Catalog:     services.NewCatalogLookup(db),
		SyncTimeout: cfg.CartSyncTimeout,
		Logger:      log.Named("cart"),
	})
	if err != nil {
		return err
	}

	authHandler := handlers.NewAuthHandler(db, cfg)
	catalogHandler := handlers.NewCatalogHandler(db, qc)
	productHandler := handlers.NewProductHandler(db, qc, storeConfig)
	storeConfigHandler := handlers.NewStoreConfigHandler(storeConfig)
	cartHandler := handlers.NewCartHandler(carts)
	orderHandler := handlers.NewOrderHandler(db, carts, deps.Pix, telegram, log.Named("orders"))
	paymentHandler := handlers.NewPaymentHandler(services.NewPaymentService(db, telegram, log.Named("payments")), log.Named("payments"))
	profileHandler := handlers.NewProfileHandler(db)
	marketingHandler := handlers.NewMarketingHandler(db, qc)
	addressHandler := handlers.NewAddressHandler(services.NewCEPService(cfg.ViaCEPBaseURL, qc, log.Named("viacep")))
	uploadHandler := handlers.NewUploadHandler(deps.Uploader, log.Named("uploads"))
	adminHandler := handlers.NewAdminHandler(db, services.NewCodeService(db))

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthMiddleware(cfg.JWTSecret), authHandler.Me)

	// Catalog routes
	categories := api.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Get("/:id", catalogHandler.GetCategory)
	api.Get("/subcategories", catalogHandler.ListSubcategories)

	products := api.Group("/products")
	productHandler.RegisterProductRoutes(products)

	api.Get("/store-config", storeConfigHandler.GetConfig)
	api.Get("/address/cep/:cep", addressHandler.LookupPostalCode)
	handlers.RegisterMarketingRoutes(api, marketingHandler)

	// Carts work for guests (X-Cart-Session) and signed-in shoppers alike.
	handlers.RegisterCartRoutes(api.Group("/cart", middleware.OptionalAuth(cfg.JWTSecret)), cartHandler)

	api.Post("/webhooks/stripe", middleware.StripeWebhook(cfg.StripeWebhookSecret), paymentHandler.StripeWebhook)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg.JWTSecret))

	handlers.RegisterOrderRoutes(protected.Group("/orders"), orderHandler)

	protected.Get("/profile", profileHandler.GetProfile)
	protected.Put("/profile", profileHandler.UpdateProfile)
	protected.Get("/profile/addresses", profileHandler.ListAddresses)
	protected.Post("/profile/addresses", profileHandler.CreateAddress)
	protected.Put("/profile/addresses/:id", profileHandler.UpdateAddress)
	protected.Delete("/profile/addresses/:id", profileHandler.DeleteAddress)

	// Admin routes
	admin := api.Group("/admin", middleware.AuthMiddleware(cfg.JWTSecret), middleware.RequireAdmin())

	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/dashboard/recent-orders", adminHandler.RecentOrders)
	admin.Get("/users", adminHandler.ListAllUsers)
	admin.Put("/users/:id/role", adminHandler.UpdateUserRole)

	admin.Post("/codes/sku", adminHandler.GenerateSKU)
	admin.Post("/codes/gtin", adminHandler.GenerateGTIN)
	admin.Get("/codes/gtin/:code", adminHandler.ValidateGTIN)

	admin.Post("/categories", catalogHandler.CreateCategory)
	admin.Put("/categories/:id", catalogHandler.UpdateCategory)
	admin.Delete("/categories/:id", catalogHandler.DeleteCategory)
	admin.Post("/subcategories", catalogHandler.CreateSubcategory)
	admin.Put("/subcategories/:id", catalogHandler.UpdateSubcategory)
	admin.Delete("/subcategories/:id", catalogHandler.DeleteSubcategory)

	productHandler.RegisterAdminRoutes(admin.Group("/products"))

	admin.Put("/store-config", storeConfigHandler.UpdateConfig)
	admin.Post("/pricing/preview", storeConfigHandler.PreviewPrice)

	admin.Get("/orders", orderHandler.AdminListOrders)
	admin.Put("/orders/:id/status", orderHandler.AdminUpdateStatus)

	handlers.RegisterUploadRoutes(admin.Group("/uploads"), uploadHandler)
	handlers.RegisterAdminMarketingRoutes(admin, marketingHandler)

	return nil
}
