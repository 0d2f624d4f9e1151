package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/vitrine/internal/cart"
	"github.com/example/vitrine/internal/database"
	"github.com/example/vitrine/internal/models"
)

// CartRepository stores carts in the carts table, one row per owner and slug.
type CartRepository struct {
	db *gorm.DB
}

var _ cart.Store = (*CartRepository)(nil)

func NewCartRepository(db *gorm.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Load(ctx context.Context, key cart.Key) (*cart.Cart, error) {
	var rec models.CartRecord
	err := r.db.WithContext(ctx).
		Where("owner = ? AND store_slug = ?", key.Owner, key.StoreSlug).
		First(&rec).Error
	if database.IsNotFound(err) {
		return cart.New(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return recordToCart(rec), nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	rec := models.CartRecord{
		Owner:        c.Owner,
		StoreSlug:    c.StoreSlug,
		Items:        models.CartItems(c.Items),
		LastSyncTime: c.LastSyncTime,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}, {Name: "store_slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"items", "last_sync_time", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (r *CartRepository) HeldContext(ctx context.Context, owner string) (string, bool, error) {
	var rec models.CartRecord
	err := r.db.WithContext(ctx).
		Where("owner = ? AND jsonb_array_length(items) > 0", owner).
		Order("updated_at DESC").
		First(&rec).Error
	if database.IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("held cart context: %w", err)
	}
	return rec.StoreSlug, true, nil
}

func recordToCart(rec models.CartRecord) *cart.Cart {
	c := cart.New(cart.Key{Owner: rec.Owner, StoreSlug: rec.StoreSlug})
	c.Items = append(c.Items, rec.Items...)
	c.LastSyncTime = rec.LastSyncTime
	return c
}

// CatalogLookup resolves authoritative product data for cart reconciliation
// in one query.
type CatalogLookup struct {
	db *gorm.DB
}

var _ cart.Catalog = (*CatalogLookup)(nil)

func NewCatalogLookup(db *gorm.DB) *CatalogLookup {
	return &CatalogLookup{db: db}
}

func (l *CatalogLookup) LookupProducts(ctx context.Context, ids []string) (map[string]cart.Product, error) {
	parsed := ParseProductIDs(ids)
	out := make(map[string]cart.Product, len(parsed))
	if len(parsed) == 0 {
		return out, nil
	}

	var products []models.Product
	if err := l.db.WithContext(ctx).
		Select("id", "name", "price", "active", "stock_quantity", "images").
		Where("id IN ?", parsed).
		Find(&products).Error; err != nil {
		return nil, err
	}

	for _, p := range products {
		out[p.ID.String()] = ToCartProduct(p)
	}
	return out, nil
}

// ToCartProduct maps a stored product to the cart's catalog view.
func ToCartProduct(p models.Product) cart.Product {
	return cart.Product{
		ID:            p.ID.String(),
		Name:          p.Name,
		Image:         p.MainImage(),
		Price:         p.Price,
		Active:        p.Active,
		StockQuantity: p.StockQuantity,
	}
}

// ParseProductIDs keeps the well-formed ids, deduplicated. Malformed ids can
// never match a product and are dropped.
func ParseProductIDs(ids []string) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
