package cart

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrInvalidItem     = errors.New("cart: item requires a product id")
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
	ErrItemNotFound    = errors.New("cart: item not found")
	ErrInvalidOwner    = errors.New("cart: owner is required")
	// ErrSyncInProgress is returned when a price sync is already running for the same cart.
	ErrSyncInProgress = errors.New("cart: price sync already in progress")
	// ErrCatalogUnavailable wraps catalog lookup failures; the cart is left untouched.
	ErrCatalogUnavailable = errors.New("cart: catalog lookup failed")
	// ErrProductUnavailable is returned when adding a product that is missing or inactive.
	ErrProductUnavailable = errors.New("cart: product unavailable")
)

// Product is the authoritative catalog view of a product.
type Product struct {
	ID            string
	Name          string
	Image         string
	Price         float64
	Active        bool
	StockQuantity int
}

// SyncResult reports what reconciliation changed. UpdatedItems hold the
// post-update lines.
type SyncResult struct {
	Updated      bool   `json:"updated"`
	UpdatedItems []Item `json:"updated_items"`
	RemovedItems []Item `json:"removed_items"`
}

// Store persists carts namespaced by Key.
type Store interface {
	// Load returns the cart for key, or an empty cart when none is stored.
	Load(ctx context.Context, key Key) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	// HeldContext returns the store slug of the owner's most recently saved
	// non-empty cart, and false when the owner holds none.
	HeldContext(ctx context.Context, owner string) (string, bool, error)
}

// Catalog resolves current product data in one batched lookup. Unknown ids
// are simply absent from the result.
type Catalog interface {
	LookupProducts(ctx context.Context, ids []string) (map[string]Product, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[Key]*Cart
	saved map[Key]time.Time
	now   func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts: make(map[Key]*Cart),
		saved: make(map[Key]time.Time),
		now:   time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, key Key) (*Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.carts[key]; ok {
		return c.Clone(), nil
	}
	return New(key), nil
}

func (s *MemoryStore) Save(_ context.Context, c *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.Key()] = c.Clone()
	s.saved[c.Key()] = s.now()
	return nil
}

func (s *MemoryStore) HeldContext(_ context.Context, owner string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		slug   string
		latest time.Time
		found  bool
	)
	for key, c := range s.carts {
		if key.Owner != owner || c.IsEmpty() {
			continue
		}
		if at := s.saved[key]; !found || at.After(latest) {
			slug, latest, found = key.StoreSlug, at, true
		}
	}
	return slug, found, nil
}
