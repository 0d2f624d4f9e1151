package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/vitrine/internal/cart"
	"github.com/example/vitrine/internal/middleware"
)

type stubCatalog struct {
	mu       sync.Mutex
	products map[string]cart.Product
	err      error
}

func (s *stubCatalog) LookupProducts(_ context.Context, ids []string) (map[string]cart.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]cart.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *stubCatalog) set(p cart.Product) {
	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
}

func newCartApp(t *testing.T) (*fiber.App, *stubCatalog) {
	t.Helper()
	catalog := &stubCatalog{products: map[string]cart.Product{
		"p1": {ID: "p1", Name: "Caneca", Price: 30, Active: true},
		"p2": {ID: "p2", Name: "Camiseta", Price: 50, Active: true},
	}}
	svc, err := cart.NewService(cart.ServiceDeps{Store: cart.NewMemoryStore(), Catalog: catalog})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(nil)})
	RegisterCartRoutes(app.Group("/cart"), NewCartHandler(svc))
	return app, catalog
}

type cartResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Redirect  string `json:"redirect"`
	HeldStore string `json:"held_store"`
	Data      struct {
		Items []cart.Item `json:"items"`
		// sync responses
		Sync cart.SyncResult `json:"sync"`
		Cart struct {
			Items      []cart.Item `json:"items"`
			TotalPrice float64     `json:"total_price"`
		} `json:"cart"`
		ItemsCount int     `json:"items_count"`
		TotalPrice float64 `json:"total_price"`
	} `json:"data"`
}

func cartCall(t *testing.T, app *fiber.App, method, target, body string) (int, cartResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.GuestSessionHeader, "guest-1")
	resp, err := app.Test(req)
	require.NoError(t, err)

	var out cartResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCartRequiresSession(t *testing.T) {
	app, _ := newCartApp(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/cart/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCartAddUpdateRemove(t *testing.T) {
	app, _ := newCartApp(t)

	status, out := cartCall(t, app, "POST", "/cart/items", `{"product_id":"p1","quantity":2}`)
	require.Equal(t, fiber.StatusCreated, status)
	require.Len(t, out.Data.Items, 1)
	assert.Equal(t, 30.0, out.Data.Items[0].Price)
	assert.Equal(t, 60.0, out.Data.TotalPrice)

	status, out = cartCall(t, app, "POST", "/cart/items", `{"product_id":"p1"}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, 3, out.Data.ItemsCount)

	status, out = cartCall(t, app, "PUT", "/cart/items/p1", `{"quantity":5}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 5, out.Data.Items[0].Quantity)

	status, _ = cartCall(t, app, "DELETE", "/cart/items/missing", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, out = cartCall(t, app, "DELETE", "/cart/items/p1", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, out.Data.Items)
}

func TestCartAddRejectsBadInput(t *testing.T) {
	app, _ := newCartApp(t)

	status, _ := cartCall(t, app, "POST", "/cart/items", `{"product_id":"p1","quantity":-1}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = cartCall(t, app, "POST", "/cart/items", `{"product_id":"ghost","quantity":1}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}

func TestCartSyncReportsChanges(t *testing.T) {
	app, catalog := newCartApp(t)

	cartCall(t, app, "POST", "/cart/items", `{"product_id":"p1","quantity":1}`)
	cartCall(t, app, "POST", "/cart/items", `{"product_id":"p2","quantity":2}`)

	catalog.set(cart.Product{ID: "p1", Name: "Caneca", Price: 35, Active: true})
	catalog.set(cart.Product{ID: "p2", Name: "Camiseta", Price: 50, Active: false})

	status, out := cartCall(t, app, "POST", "/cart/sync", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.True(t, out.Data.Sync.Updated)
	require.Len(t, out.Data.Sync.UpdatedItems, 1)
	assert.Equal(t, 35.0, out.Data.Sync.UpdatedItems[0].Price)
	require.Len(t, out.Data.Sync.RemovedItems, 1)
	assert.Equal(t, "p2", out.Data.Sync.RemovedItems[0].ProductID)
	require.Len(t, out.Data.Cart.Items, 1)
	assert.Equal(t, 35.0, out.Data.Cart.TotalPrice)

	status, out = cartCall(t, app, "POST", "/cart/sync", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.False(t, out.Data.Sync.Updated)
}

func TestCartSyncCatalogFailureLeavesCart(t *testing.T) {
	app, catalog := newCartApp(t)
	cartCall(t, app, "POST", "/cart/items", `{"product_id":"p1","quantity":1}`)

	catalog.mu.Lock()
	catalog.err = errors.New("db down")
	catalog.mu.Unlock()

	status, out := cartCall(t, app, "POST", "/cart/sync", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.False(t, out.Success)

	catalog.mu.Lock()
	catalog.err = nil
	catalog.mu.Unlock()

	status, out = cartCall(t, app, "GET", "/cart/", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, out.Data.Items, 1)
	assert.Equal(t, 30.0, out.Data.Items[0].Price)
}

func TestCartStoreContextMismatch(t *testing.T) {
	app, _ := newCartApp(t)

	status, _ := cartCall(t, app, "POST", "/cart/items?store=ana", `{"product_id":"p1","quantity":1}`)
	require.Equal(t, fiber.StatusCreated, status)

	status, out := cartCall(t, app, "POST", "/cart/items?store=bia", `{"product_id":"p2","quantity":1}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "ana", out.HeldStore)
	assert.Equal(t, "/loja/ana", out.Redirect)

	status, out = cartCall(t, app, "POST", "/cart/enter/main", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "/loja/ana", out.Redirect)

	status, _ = cartCall(t, app, "POST", "/cart/enter/ana", "")
	assert.Equal(t, fiber.StatusOK, status)

	cartCall(t, app, "DELETE", "/cart/?store=ana", "")
	status, _ = cartCall(t, app, "POST", "/cart/enter/bia", "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestCartStoreSlugOutlivesRequest(t *testing.T) {
	app, _ := newCartApp(t)

	status, _ := cartCall(t, app, "POST", "/cart/items?store=ana", `{"product_id":"p1","quantity":1}`)
	require.Equal(t, fiber.StatusCreated, status)

	status, out := cartCall(t, app, "GET", "/cart/?store=bia", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, out.Data.Items)

	status, out = cartCall(t, app, "GET", "/cart/?store=ana", "")
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, out.Data.Items, 1)
	assert.Equal(t, "p1", out.Data.Items[0].ProductID)

	status, out = cartCall(t, app, "POST", "/cart/enter/bia", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "ana", out.HeldStore)
}

func TestCartMainAliasIsMainStorefront(t *testing.T) {
	app, _ := newCartApp(t)

	status, _ := cartCall(t, app, "POST", "/cart/items?store=main", `{"product_id":"p1","quantity":1}`)
	require.Equal(t, fiber.StatusCreated, status)

	status, out := cartCall(t, app, "GET", "/cart/", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, out.Data.Items, 1)

	status, _ = cartCall(t, app, "POST", "/cart/enter/main", "")
	assert.Equal(t, fiber.StatusOK, status)

	status, out = cartCall(t, app, "POST", "/cart/enter/ana", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "", out.HeldStore)
	assert.Equal(t, "/", out.Redirect)
}

func TestCartSyncStatus(t *testing.T) {
	app, _ := newCartApp(t)
	req := httptest.NewRequest("GET", "/cart/sync/status", nil)
	req.Header.Set(middleware.GuestSessionHeader, "guest-1")
	resp, err := app.Test(req)
	require.NoError(t, err)

	var out struct {
		Data struct {
			IsUpdatingPrices bool `json:"is_updating_prices"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.Data.IsUpdatingPrices)
}

func TestStorefrontPath(t *testing.T) {
	assert.Equal(t, "/", storefrontPath(""))
	assert.Equal(t, "/loja/ana", storefrontPath("ana"))
}
