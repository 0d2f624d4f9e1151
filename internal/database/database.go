package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/vitrine/internal/models"
)

// Connect opens the database, creating it first when the server allows, and
// runs migrations.
func Connect(dsn string, log *zap.Logger, debug bool) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if err := ensureDatabase(dsn); err != nil {
		return nil, fmt.Errorf("ensure database: %w", err)
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := conn.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Warn("failed to ensure uuid-ossp extension", zap.Error(err))
	}

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("database ready", zap.String("database", databaseName(dsn)))
	return conn, nil
}

// IsNotFound reports whether err means "no matching row". Callers treat it as
// an empty result rather than a failure.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Migrations lists every model owned by the service, in dependency order.
func Migrations() []any {
	return []any{
		&models.User{},
		&models.UserAddress{},
		&models.Category{},
		&models.Subcategory{},
		&models.Product{},
		&models.ProductVariant{},
		&models.CodeSequence{},
		&models.StoreConfig{},
		&models.ShippingMethod{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentTransaction{},
		&models.CartRecord{},
		&models.HomepageCategory{},
		&models.FeaturedProduct{},
		&models.Testimonial{},
		&models.NewsletterConfig{},
		&models.NewsletterSubscriber{},
		&models.KnowledgeBaseEntry{},
	}
}

func migrate(conn *gorm.DB) error {
	for _, migration := range Migrations() {
		if err := conn.AutoMigrate(migration); err != nil {
			return err
		}
	}
	return nil
}

func databaseName(dsn string) string {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return ""
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(parsed.Path, "/")
}

func ensureDatabase(dsn string) error {
	dbName := databaseName(dsn)
	if dbName == "" {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}
	parsed.Path = "/postgres"

	sqlDB, err := sql.Open("postgres", parsed.String())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
