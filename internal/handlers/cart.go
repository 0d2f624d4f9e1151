package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/vitrine/internal/cart"
	"github.com/example/vitrine/internal/middleware"
)

// CartService is the slice of cart.Service the HTTP layer drives.
type CartService interface {
	Get(ctx context.Context, key cart.Key) (*cart.Cart, error)
	AddItem(ctx context.Context, key cart.Key, productID string, quantity int, variants map[string]string) (*cart.Cart, error)
	UpdateQuantity(ctx context.Context, key cart.Key, productID string, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, key cart.Key, productID string) (*cart.Cart, error)
	Clear(ctx context.Context, key cart.Key) (*cart.Cart, error)
	SyncPrices(ctx context.Context, key cart.Key) (cart.SyncResult, error)
	IsUpdatingPrices(key cart.Key) bool
	EnterStore(ctx context.Context, owner, slug string) error
}

type CartHandler struct {
	carts CartService
}

func NewCartHandler(carts CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type cartView struct {
	*cart.Cart
	ItemsCount int     `json:"items_count"`
	TotalPrice float64 `json:"total_price"`
}

func viewOf(c *cart.Cart) cartView {
	return cartView{Cart: c, ItemsCount: c.ItemsCount(), TotalPrice: c.TotalPrice()}
}

// cartKey resolves the owner from the session and the storefront from the
// ?store query parameter.
func cartKey(c *fiber.Ctx) (cart.Key, error) {
	owner, ok := middleware.CartOwner(c)
	if !ok {
		return cart.Key{}, fiber.NewError(fiber.StatusBadRequest, "cart session required")
	}
	return cart.Key{Owner: owner, StoreSlug: storeSlug(c.Query("store"))}, nil
}

// storeSlug normalises a slug read from the request. Fiber strings point into
// a buffer reused by the next request, and the slug is kept in the cart key,
// so it is copied first.
func storeSlug(raw string) string {
	return cart.NormaliseSlug(strings.Clone(raw))
}

// storefrontPath is where a shopper holding a cart for slug is sent back to.
func storefrontPath(slug string) string {
	if slug == "" {
		return "/"
	}
	return "/loja/" + slug
}

func cartError(c *fiber.Ctx, err error) error {
	var mismatch *cart.StoreContextError
	switch {
	case errors.As(err, &mismatch):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success":    false,
			"error":      "you already have a cart in another store",
			"held_store": mismatch.Held,
			"redirect":   storefrontPath(mismatch.Held),
		})
	case errors.Is(err, cart.ErrSyncInProgress):
		return fiber.NewError(fiber.StatusConflict, "cart prices are being updated")
	case errors.Is(err, cart.ErrCatalogUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "catalog unavailable, try again")
	case errors.Is(err, cart.ErrProductUnavailable):
		return fiber.NewError(fiber.StatusUnprocessableEntity, "product unavailable")
	case errors.Is(err, cart.ErrItemNotFound):
		return fiber.NewError(fiber.StatusNotFound, "item not in cart")
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrInvalidItem), errors.Is(err, cart.ErrInvalidOwner):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return err
	}
	current, err := h.carts.Get(c.UserContext(), key)
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": viewOf(current)})
}

type addItemRequest struct {
	ProductID string            `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Variants  map[string]string `json:"variants"`
}

// AddItem adds a product. Entering a new storefront with a cart held
// elsewhere is refused before anything is written.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return err
	}

	var req addItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if err := h.carts.EnterStore(c.UserContext(), key.Owner, key.StoreSlug); err != nil {
		return cartError(c, err)
	}

	updated, err := h.carts.AddItem(c.UserContext(), key, req.ProductID, req.Quantity, req.Variants)
	if err != nil {
		return cartError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": viewOf(updated)})
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return err
	}

	var req updateQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updated, err := h.carts.UpdateQuantity(c.UserContext(), key, c.Params("productId"), req.Quantity)
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": viewOf(updated)})
}

func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return err
	}
	updated, err := h.carts.RemoveItem(c.UserContext(), key, c.Params("productId"))
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": viewOf(updated)})
}

func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return err
	}
	updated, err := h.carts.Clear(c.UserContext(), key)
	if err != nil {
		return cartError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": viewOf(updated)})
}

// SyncPrices reconciles the cart with the catalog and returns the report
// together with the resulting cart.
func (h *CartHandler) SyncPrices(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return err
	}

	result, err := h.carts.SyncPrices(c.UserContext(), key)
	if err != nil {
		return cartError(c, err)
	}
	current, err := h.carts.Get(c.UserContext(), key)
	if err != nil {
		return cartError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"sync": result,
			"cart": viewOf(current),
		},
	})
}

func (h *CartHandler) SyncStatus(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"is_updating_prices": h.carts.IsUpdatingPrices(key)},
	})
}

// EnterStore is called by storefront pages on load so the client can
// redirect before the shopper starts adding items.
func (h *CartHandler) EnterStore(c *fiber.Ctx) error {
	owner, ok := middleware.CartOwner(c)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "cart session required")
	}
	slug := storeSlug(c.Params("slug"))
	if strings.ContainsAny(slug, "/?#") {
		return fiber.NewError(fiber.StatusBadRequest, "invalid store")
	}

	if err := h.carts.EnterStore(c.UserContext(), owner, slug); err != nil {
		return cartError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"store_slug": slug}})
}

func RegisterCartRoutes(router fiber.Router, h *CartHandler) {
	router.Get("/", h.GetCart)
	router.Post("/items", h.AddItem)
	router.Put("/items/:productId", h.UpdateItem)
	router.Delete("/items/:productId", h.RemoveItem)
	router.Delete("/", h.ClearCart)
	router.Post("/sync", h.SyncPrices)
	router.Get("/sync/status", h.SyncStatus)
	router.Post("/enter/:slug", h.EnterStore)
}
