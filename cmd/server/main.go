package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/example/vitrine/internal/cache"
	"github.com/example/vitrine/internal/config"
	"github.com/example/vitrine/internal/database"
	"github.com/example/vitrine/internal/logging"
	"github.com/example/vitrine/internal/middleware"
	"github.com/example/vitrine/internal/routes"
	"github.com/example/vitrine/internal/services"
	"github.com/example/vitrine/internal/storage"
)

func main() {
	cfg := config.Load()

	zlog, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.Connect(cfg.DatabaseURL, zlog.Named("database"), cfg.LogLevel == "debug")
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}

	ctx := context.Background()
	uploader, local, err := buildUploader(ctx, cfg)
	if err != nil {
		zlog.Fatal("storage setup failed", zap.Error(err))
	}

	var pix services.PixGateway = services.DisabledPix{}
	if cfg.StripeSecretKey != "" {
		gateway, err := services.NewStripePix(services.StripePixConfig{
			APIKey:       cfg.StripeSecretKey,
			ExpiresAfter: cfg.PixExpiresAfter,
			Logger:       zlog.Named("pix"),
		})
		if err != nil {
			zlog.Fatal("pix gateway setup failed", zap.Error(err))
		}
		pix = gateway
	} else {
		zlog.Warn("STRIPE_SECRET_KEY not set, PIX checkout disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Vitrine Backend",
		ErrorHandler: middleware.ErrorHandler(zlog.Named("http")),
		BodyLimit:    20 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	if local != nil {
		app.Static("/uploads", local.Dir())
	}

	if err := routes.Register(app, routes.Deps{
		DB:       db,
		Config:   cfg,
		Cache:    cache.New(cfg.CacheTTL),
		Logger:   zlog,
		Uploader: uploader,
		Pix:      pix,
	}); err != nil {
		zlog.Fatal("route setup failed", zap.Error(err))
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		zlog.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Warn("shutdown", zap.Error(err))
		}
	}()

	zlog.Info("starting server", zap.String("port", cfg.AppPort))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		zlog.Fatal("fiber.Listen error", zap.Error(err))
	}
}

// buildUploader picks the storage backend. The local uploader is also
// returned so its directory can be served.
func buildUploader(ctx context.Context, cfg *config.Config) (storage.Uploader, *storage.LocalUploader, error) {
	if cfg.StorageDriver == "gcs" {
		client, err := storage.NewGCSClient(ctx, cfg.GCSCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		uploader, err := storage.NewGCSUploader(client, cfg.GCSBucket)
		return uploader, nil, err
	}

	local, err := storage.NewLocalUploader(cfg.LocalStorageDir, cfg.PublicBaseURL+"/uploads")
	if err != nil {
		return nil, nil, err
	}
	return local, local, nil
}
