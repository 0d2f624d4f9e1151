package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/vitrine/internal/cache"
	"github.com/example/vitrine/internal/database"
	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/pricing"
)

const storeConfigCacheKey = "store_config"

// StoreConfigService reads and writes the store_config singleton.
type StoreConfigService struct {
	db    *gorm.DB
	cache *cache.QueryCache
}

func NewStoreConfigService(db *gorm.DB, qc *cache.QueryCache) *StoreConfigService {
	return &StoreConfigService{db: db, cache: qc}
}

// Get returns the saved configuration, or the defaults when none exists.
func (s *StoreConfigService) Get(ctx context.Context) (models.StoreConfig, error) {
	return cache.Fetch(s.cache, storeConfigCacheKey, func() (models.StoreConfig, error) {
		var cfg models.StoreConfig
		err := s.db.WithContext(ctx).Order("created_at asc").First(&cfg).Error
		if database.IsNotFound(err) {
			return models.DefaultStoreConfig(), nil
		}
		if err != nil {
			return models.StoreConfig{}, fmt.Errorf("load store config: %w", err)
		}
		return cfg, nil
	})
}

// FeeConfiguration returns the pricing settings in effect.
func (s *StoreConfigService) FeeConfiguration(ctx context.Context) (*pricing.FeeConfiguration, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.FeeConfiguration(), nil
}

// Save validates the fee settings and stores them in the singleton row. An
// invalid configuration is rejected before anything is written.
func (s *StoreConfigService) Save(ctx context.Context, next models.StoreConfig) (models.StoreConfig, error) {
	if err := next.FeeConfiguration().Validate(); err != nil {
		return models.StoreConfig{}, err
	}
	if next.AdditionalCosts == nil {
		next.AdditionalCosts = models.AdditionalCosts{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.StoreConfig
		err := tx.Order("created_at asc").First(&current).Error
		if database.IsNotFound(err) {
			next.ID = uuid.Nil
			return tx.Create(&next).Error
		}
		if err != nil {
			return err
		}
		next.ID = current.ID
		next.CreatedAt = current.CreatedAt
		return tx.Save(&next).Error
	})
	if err != nil {
		return models.StoreConfig{}, fmt.Errorf("save store config: %w", err)
	}

	s.cache.Invalidate(storeConfigCacheKey)
	s.cache.Invalidate("products:")
	return next, nil
}
