package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	mu       sync.Mutex
	products map[string]Product
	err      error
	calls    int
	lookupFn func(ctx context.Context, ids []string) (map[string]Product, error)
}

func (s *stubCatalog) LookupProducts(ctx context.Context, ids []string) (map[string]Product, error) {
	s.mu.Lock()
	s.calls++
	fn := s.lookupFn
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, ids)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *stubCatalog) set(id string, p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = p
}

func newTestService(t *testing.T, catalog Catalog, store Store) *Service {
	t.Helper()
	svc, err := NewService(ServiceDeps{
		Store:       store,
		Catalog:     catalog,
		SyncTimeout: 200 * time.Millisecond,
		Clock:       func() time.Time { return time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceDeps{Catalog: &stubCatalog{}})
	assert.Error(t, err)
	_, err = NewService(ServiceDeps{Store: NewMemoryStore()})
	assert.Error(t, err)
}

func TestServiceAddItemSnapshotsPriceAndMerges(t *testing.T) {
	ctx := context.Background()
	catalog := &stubCatalog{products: map[string]Product{
		"x": {ID: "x", Name: "Almofada", Image: "x.png", Price: 40, Active: true},
	}}
	svc := newTestService(t, catalog, NewMemoryStore())
	key := Key{Owner: "u1"}

	_, err := svc.AddItem(ctx, key, "x", 2, map[string]string{"color": "verde"})
	require.NoError(t, err)

	catalog.set("x", Product{ID: "x", Name: "Almofada", Price: 55, Active: true})

	c, err := svc.AddItem(ctx, key, "x", 3, nil)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, 40.0, c.Items[0].Price, "price stays at the add-time snapshot")
	assert.Equal(t, "Almofada", c.Items[0].ProductName)
	assert.Equal(t, "x.png", c.Items[0].ProductImage)
}

func TestServiceAddItemRejectsInactiveProduct(t *testing.T) {
	catalog := &stubCatalog{products: map[string]Product{
		"x": {ID: "x", Price: 40, Active: false},
	}}
	svc := newTestService(t, catalog, NewMemoryStore())

	_, err := svc.AddItem(context.Background(), Key{Owner: "u1"}, "x", 1, nil)
	assert.ErrorIs(t, err, ErrProductUnavailable)

	_, err = svc.AddItem(context.Background(), Key{Owner: "u1"}, "missing", 1, nil)
	assert.ErrorIs(t, err, ErrProductUnavailable)
}

func TestServiceSyncRemovesInactiveProduct(t *testing.T) {
	ctx := context.Background()
	catalog := &stubCatalog{products: map[string]Product{
		"p1": {ID: "p1", Name: "Luminária", Price: 50, Active: true},
	}}
	svc := newTestService(t, catalog, NewMemoryStore())
	key := Key{Owner: "u1"}

	_, err := svc.AddItem(ctx, key, "p1", 1, nil)
	require.NoError(t, err)

	catalog.set("p1", Product{ID: "p1", Name: "Luminária", Price: 50, Active: false})

	result, err := svc.SyncPrices(ctx, key)
	require.NoError(t, err)
	assert.True(t, result.Updated)
	assert.Empty(t, result.UpdatedItems)
	require.Len(t, result.RemovedItems, 1)
	assert.Equal(t, "p1", result.RemovedItems[0].ProductID)
	assert.Equal(t, 50.0, result.RemovedItems[0].Price)

	c, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	require.NotNil(t, c.LastSyncTime)
}

func TestServiceSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	catalog := &stubCatalog{products: map[string]Product{
		"a": {ID: "a", Price: 10, Active: true},
		"b": {ID: "b", Price: 20, Active: true},
	}}
	svc := newTestService(t, catalog, NewMemoryStore())
	key := Key{Owner: "u1", StoreSlug: "loja-da-ana"}

	_, err := svc.AddItem(ctx, key, "a", 1, nil)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, key, "b", 2, nil)
	require.NoError(t, err)

	catalog.set("b", Product{ID: "b", Price: 18, Active: true})

	first, err := svc.SyncPrices(ctx, key)
	require.NoError(t, err)
	assert.True(t, first.Updated)
	require.Len(t, first.UpdatedItems, 1)
	assert.Equal(t, 18.0, first.UpdatedItems[0].Price)

	before, err := svc.Get(ctx, key)
	require.NoError(t, err)

	second, err := svc.SyncPrices(ctx, key)
	require.NoError(t, err)
	assert.False(t, second.Updated)

	after, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, before.Items, after.Items)
	assert.Equal(t, []string{"a", "b"}, after.ProductIDs())
}

func TestServiceSyncFailureLeavesCartUntouched(t *testing.T) {
	ctx := context.Background()
	catalog := &stubCatalog{products: map[string]Product{
		"a": {ID: "a", Price: 10, Active: true},
	}}
	store := NewMemoryStore()
	svc := newTestService(t, catalog, store)
	key := Key{Owner: "u1"}

	_, err := svc.AddItem(ctx, key, "a", 1, nil)
	require.NoError(t, err)

	catalog.mu.Lock()
	catalog.err = errors.New("connection reset")
	catalog.mu.Unlock()

	_, err = svc.SyncPrices(ctx, key)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)

	c, err := store.Load(ctx, key)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 10.0, c.Items[0].Price)
	assert.Nil(t, c.LastSyncTime)
}

func TestServiceSyncTimesOut(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	defer close(release)

	catalog := &stubCatalog{products: map[string]Product{
		"a": {ID: "a", Price: 10, Active: true},
	}}
	svc := newTestService(t, catalog, NewMemoryStore())
	key := Key{Owner: "u1"}
	_, err := svc.AddItem(ctx, key, "a", 1, nil)
	require.NoError(t, err)

	catalog.mu.Lock()
	catalog.lookupFn = func(context.Context, []string) (map[string]Product, error) {
		<-release // ignores cancellation
		return nil, nil
	}
	catalog.mu.Unlock()

	start := time.Now()
	_, err = svc.SyncPrices(ctx, key)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, svc.IsUpdatingPrices(key))
}

func TestServiceRejectsConcurrentSync(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})

	catalog := &stubCatalog{products: map[string]Product{
		"a": {ID: "a", Price: 10, Active: true},
	}}
	store := NewMemoryStore()
	svc, err := NewService(ServiceDeps{Store: store, Catalog: catalog, SyncTimeout: 5 * time.Second})
	require.NoError(t, err)

	key := Key{Owner: "u1"}
	_, err = svc.AddItem(ctx, key, "a", 1, nil)
	require.NoError(t, err)

	catalog.mu.Lock()
	catalog.lookupFn = func(context.Context, []string) (map[string]Product, error) {
		close(entered)
		<-release
		return map[string]Product{"a": {ID: "a", Price: 11, Active: true}}, nil
	}
	catalog.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := svc.SyncPrices(ctx, key)
		done <- err
	}()

	<-entered
	assert.True(t, svc.IsUpdatingPrices(key))

	_, err = svc.SyncPrices(ctx, key)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, svc.IsUpdatingPrices(key))

	c, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 11.0, c.Items[0].Price)

	// Other carts are not blocked by an in-flight sync elsewhere.
	assert.False(t, svc.IsUpdatingPrices(Key{Owner: "u2"}))
}

func TestServiceCartsAreIsolatedPerStore(t *testing.T) {
	ctx := context.Background()
	catalog := &stubCatalog{products: map[string]Product{
		"a": {ID: "a", Price: 10, Active: true},
	}}
	svc := newTestService(t, catalog, NewMemoryStore())

	_, err := svc.AddItem(ctx, Key{Owner: "u1", StoreSlug: "Loja-A"}, "a", 1, nil)
	require.NoError(t, err)

	other, err := svc.Get(ctx, Key{Owner: "u1", StoreSlug: "loja-b"})
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())

	same, err := svc.Get(ctx, Key{Owner: "u1", StoreSlug: " loja-a "})
	require.NoError(t, err)
	assert.Len(t, same.Items, 1)
}

func TestServiceEnterStore(t *testing.T) {
	ctx := context.Background()
	catalog := &stubCatalog{products: map[string]Product{
		"a": {ID: "a", Price: 10, Active: true},
	}}
	svc := newTestService(t, catalog, NewMemoryStore())

	require.NoError(t, svc.EnterStore(ctx, "u1", "loja-b"), "no held cart")

	_, err := svc.AddItem(ctx, Key{Owner: "u1", StoreSlug: "loja-a"}, "a", 1, nil)
	require.NoError(t, err)

	require.NoError(t, svc.EnterStore(ctx, "u1", "LOJA-A"))

	err = svc.EnterStore(ctx, "u1", "loja-b")
	require.ErrorIs(t, err, ErrStoreContextMismatch)
	var ctxErr *StoreContextError
	require.ErrorAs(t, err, &ctxErr)
	assert.Equal(t, "loja-a", ctxErr.Held)
	assert.Equal(t, "loja-b", ctxErr.Requested)

	_, err = svc.Clear(ctx, Key{Owner: "u1", StoreSlug: "loja-a"})
	require.NoError(t, err)
	assert.NoError(t, svc.EnterStore(ctx, "u1", "loja-b"))
}

func TestServiceRequiresOwner(t *testing.T) {
	svc := newTestService(t, &stubCatalog{}, NewMemoryStore())
	_, err := svc.Get(context.Background(), Key{Owner: "  "})
	assert.ErrorIs(t, err, ErrInvalidOwner)
	_, err = svc.SyncPrices(context.Background(), Key{})
	assert.ErrorIs(t, err, ErrInvalidOwner)
}

func TestNormaliseSlug(t *testing.T) {
	assert.Equal(t, "loja-a", NormaliseSlug(" Loja-A "))
	assert.Equal(t, "", NormaliseSlug(MainStoreSlug))
	assert.Equal(t, "", NormaliseSlug(" MAIN"))
	assert.Equal(t, "", NormaliseSlug(""))
}
