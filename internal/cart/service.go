package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSyncTimeout = 10 * time.Second

// ErrStoreContextMismatch is returned when an owner enters a storefront while
// holding a non-empty cart for another one.
var ErrStoreContextMismatch = errors.New("cart: cart belongs to another storefront")

// StoreContextError carries the storefront that owns the held cart.
type StoreContextError struct {
	Held      string
	Requested string
}

func (e *StoreContextError) Error() string {
	return fmt.Sprintf("cart: held cart belongs to storefront %q, not %q", e.Held, e.Requested)
}

func (e *StoreContextError) Unwrap() error {
	return ErrStoreContextMismatch
}

// ServiceDeps wires the collaborators of Service.
type ServiceDeps struct {
	Store       Store
	Catalog     Catalog
	SyncTimeout time.Duration
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Service applies cart mutations and price reconciliation on persisted carts.
// Operations on the same Key are serialised; at most one price sync per Key
// runs at a time.
type Service struct {
	store   Store
	catalog Catalog
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger

	locks    keyedLocker
	syncMu   sync.Mutex
	inflight map[Key]struct{}
}

// NewService validates deps and returns a Service.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Store == nil {
		return nil, errors.New("cart service: store is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog is required")
	}

	timeout := deps.SyncTimeout
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		store:    deps.Store,
		catalog:  deps.Catalog,
		timeout:  timeout,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
		locks:    keyedLocker{locks: make(map[Key]*keyedLock)},
		inflight: make(map[Key]struct{}),
	}, nil
}

// Get loads the cart for key.
func (s *Service) Get(ctx context.Context, key Key) (*Cart, error) {
	key, err := normaliseKey(key)
	if err != nil {
		return nil, err
	}
	return s.store.Load(ctx, key)
}

// AddItem adds quantity units of productID. A product already in the cart
// has its quantity incremented; a new one is appended with the current
// catalog price as its snapshot.
func (s *Service) AddItem(ctx context.Context, key Key, productID string, quantity int, variants map[string]string) (*Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, ErrInvalidItem
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	return s.mutate(ctx, key, func(c *Cart) error {
		if c.indexOf(productID) >= 0 {
			return c.AddItem(Item{ProductID: productID}, quantity)
		}

		products, err := s.lookup(ctx, []string{productID})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
		product, ok := products[productID]
		if !ok || !product.Active {
			return ErrProductUnavailable
		}

		return c.AddItem(Item{
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductImage: product.Image,
			Price:        product.Price,
			Variants:     variants,
		}, quantity)
	})
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (s *Service) UpdateQuantity(ctx context.Context, key Key, productID string, quantity int) (*Cart, error) {
	return s.mutate(ctx, key, func(c *Cart) error {
		return c.UpdateQuantity(productID, quantity)
	})
}

// RemoveItem drops a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, key Key, productID string) (*Cart, error) {
	return s.mutate(ctx, key, func(c *Cart) error {
		return c.RemoveItem(productID)
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, key Key) (*Cart, error) {
	return s.mutate(ctx, key, func(c *Cart) error {
		c.Clear()
		return nil
	})
}

// IsUpdatingPrices reports whether a price sync is running for key.
func (s *Service) IsUpdatingPrices(key Key) bool {
	key, err := normaliseKey(key)
	if err != nil {
		return false
	}
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	_, ok := s.inflight[key]
	return ok
}

// SyncPrices reconciles the cart for key against the catalog. The catalog is
// queried once for all products; if that lookup fails or times out the cart
// is left exactly as it was. A call made while another sync for the same key
// is running returns ErrSyncInProgress without touching the cart.
func (s *Service) SyncPrices(ctx context.Context, key Key) (SyncResult, error) {
	key, err := normaliseKey(key)
	if err != nil {
		return SyncResult{}, err
	}
	if !s.beginSync(key) {
		return SyncResult{}, ErrSyncInProgress
	}
	defer s.endSync(key)

	unlock := s.locks.lock(key)
	defer unlock()

	current, err := s.store.Load(ctx, key)
	if err != nil {
		return SyncResult{}, err
	}
	products, err := s.lookup(ctx, current.ProductIDs())
	if err != nil {
		s.logger.Warn("cart price sync failed",
			zap.String("owner", key.Owner),
			zap.String("store_slug", key.StoreSlug),
			zap.Error(err),
		)
		return SyncResult{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	next := current.Clone()
	result := next.Reconcile(products, s.now())
	if err := s.store.Save(ctx, next); err != nil {
		return SyncResult{}, err
	}

	if result.Updated {
		s.logger.Info("cart prices reconciled",
			zap.String("owner", key.Owner),
			zap.String("store_slug", key.StoreSlug),
			zap.Int("updated", len(result.UpdatedItems)),
			zap.Int("removed", len(result.RemovedItems)),
		)
	}
	return result, nil
}

// EnterStore checks that owner may shop in storefront slug. Holding a
// non-empty cart for a different storefront yields a *StoreContextError.
func (s *Service) EnterStore(ctx context.Context, owner, slug string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return ErrInvalidOwner
	}
	slug = NormaliseSlug(slug)

	held, ok, err := s.store.HeldContext(ctx, owner)
	if err != nil {
		return err
	}
	if ok && held != slug {
		return &StoreContextError{Held: held, Requested: slug}
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, ids []string) (map[string]Product, error) {
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type lookupResult struct {
		products map[string]Product
		err      error
	}
	done := make(chan lookupResult, 1)
	go func() {
		products, err := s.catalog.LookupProducts(lookupCtx, ids)
		done <- lookupResult{products: products, err: err}
	}()

	// The catalog may not honour cancellation; the deadline still frees the cart.
	select {
	case res := <-done:
		return res.products, res.err
	case <-lookupCtx.Done():
		return nil, lookupCtx.Err()
	}
}

func (s *Service) mutate(ctx context.Context, key Key, fn func(*Cart) error) (*Cart, error) {
	key, err := normaliseKey(key)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(key)
	defer unlock()

	current, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Service) beginSync(key Key) bool {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Service) endSync(key Key) {
	s.syncMu.Lock()
	delete(s.inflight, key)
	s.syncMu.Unlock()
}

// MainStoreSlug is the path alias of the main storefront, whose slug is empty.
const MainStoreSlug = "main"

// NormaliseSlug canonicalises a storefront slug. MainStoreSlug and the empty
// slug both address the main storefront.
func NormaliseSlug(slug string) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == MainStoreSlug {
		return ""
	}
	return slug
}

func normaliseKey(key Key) (Key, error) {
	key.Owner = strings.TrimSpace(key.Owner)
	if key.Owner == "" {
		return Key{}, ErrInvalidOwner
	}
	key.StoreSlug = NormaliseSlug(key.StoreSlug)
	return key, nil
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// keyedLocker hands out one mutex per Key and forgets it once unused.
type keyedLocker struct {
	mu    sync.Mutex
	locks map[Key]*keyedLock
}

func (l *keyedLocker) lock(key Key) func() {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyedLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
