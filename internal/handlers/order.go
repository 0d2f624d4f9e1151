package handlers

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/vitrine/internal/cart"
	"github.com/example/vitrine/internal/database"
	"github.com/example/vitrine/internal/middleware"
	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/services"
	"github.com/example/vitrine/internal/utils"
)

var errEmptyCart = errors.New("cart is empty")

// OrderHandler manages checkout and order endpoints.
type OrderHandler struct {
	db       *gorm.DB
	carts    CartService
	pix      services.PixGateway
	telegram *services.TelegramService
	log      *zap.Logger
	now      func() time.Time
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, carts CartService, pix services.PixGateway, telegram *services.TelegramService, log *zap.Logger) *OrderHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderHandler{db: db, carts: carts, pix: pix, telegram: telegram, log: log, now: time.Now}
}

type shippingAddressRequest struct {
	PostalCode   string `json:"postal_code"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
}

type checkoutRequest struct {
	StoreSlug        string                 `json:"store_slug"`
	ShippingMethodID string                 `json:"shipping_method_id"`
	AddressID        string                 `json:"address_id"`
	Address          shippingAddressRequest `json:"address"`
	Notes            string                 `json:"notes"`
}

// NewOrderNumber returns a human readable order number such as
// VT-20261014-3F9K2A.
func NewOrderNumber(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	return "VT-" + now.UTC().Format("20060102") + "-" + id[len(id)-6:]
}

// orderFromCart freezes the reconciled cart into an order. Prices come from
// the cart lines, which the caller has just synced against the catalog.
func orderFromCart(current *cart.Cart, shipping *models.ShippingMethod, now time.Time) (models.Order, error) {
	if current == nil || current.IsEmpty() {
		return models.Order{}, errEmptyCart
	}

	order := models.Order{
		OrderNumber:   NewOrderNumber(now),
		StoreSlug:     current.StoreSlug,
		Status:        models.OrderStatusPending,
		PlacedAt:      now.UTC(),
		Currency:      "BRL",
		PaymentMethod: "pix",
	}

	var subtotal float64
	for _, line := range current.Items {
		item := models.OrderItem{
			ProductName: line.ProductName,
			Variants:    models.StringMap(line.Variants),
			Quantity:    line.Quantity,
			UnitPrice:   line.Price,
			LineTotal:   roundCents(line.Price * float64(line.Quantity)),
		}
		if id, err := uuid.Parse(line.ProductID); err == nil {
			item.ProductID = &id
		}
		subtotal += item.LineTotal
		order.Items = append(order.Items, item)
	}
	order.Subtotal = roundCents(subtotal)

	if shipping != nil {
		id := shipping.ID
		order.ShippingMethodID = &id
		order.ShippingFee = shipping.PriceFor(order.Subtotal)
	}
	order.TotalAmount = roundCents(order.Subtotal + order.ShippingFee)
	return order, nil
}

func (a shippingAddressRequest) applyTo(order *models.Order) error {
	cep, err := services.NormalizePostalCode(a.PostalCode)
	if err != nil {
		return err
	}
	order.PostalCode = cep
	order.Street = strings.TrimSpace(a.Street)
	order.Number = strings.TrimSpace(a.Number)
	order.Complement = strings.TrimSpace(a.Complement)
	order.Neighborhood = strings.TrimSpace(a.Neighborhood)
	order.City = strings.TrimSpace(a.City)
	order.State = strings.ToUpper(strings.TrimSpace(a.State))
	return nil
}

func addressFromSaved(a models.UserAddress) shippingAddressRequest {
	return shippingAddressRequest{
		PostalCode:   a.PostalCode,
		Street:       a.Street,
		Number:       a.Number,
		Complement:   a.Complement,
		Neighborhood: a.Neighborhood,
		City:         a.City,
		State:        a.State,
	}
}

// Checkout places a PIX order from the shopper's cart. The cart is synced
// first; when anything changed the order is refused and the shopper gets the
// change report to review.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	owner, _ := middleware.CartOwner(c)
	key := cart.Key{Owner: owner, StoreSlug: cart.NormaliseSlug(req.StoreSlug)}

	sync, err := h.carts.SyncPrices(ctx, key)
	if err != nil {
		return cartError(c, err)
	}
	if sync.Updated {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "cart prices or availability changed, review your cart",
			"data":    sync,
		})
	}

	current, err := h.carts.Get(ctx, key)
	if err != nil {
		return cartError(c, err)
	}

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if database.IsNotFound(err) {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}
		return err
	}

	shipping, err := h.loadShipping(ctx, req.ShippingMethodID)
	if err != nil {
		return err
	}

	address := req.Address
	if req.AddressID != "" {
		saved, err := h.loadAddress(ctx, userID, req.AddressID)
		if err != nil {
			return err
		}
		address = addressFromSaved(saved)
	}
	if strings.TrimSpace(address.PostalCode) == "" || strings.TrimSpace(address.City) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "shipping address is required")
	}

	order, err := orderFromCart(current, shipping, h.now())
	if errors.Is(err, errEmptyCart) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	order.UserID = userID
	order.Notes = strings.TrimSpace(req.Notes)
	if err := address.applyTo(&order); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := h.db.WithContext(ctx).Create(&order).Error; err != nil {
		return err
	}

	payment, err := h.pix.CreatePix(ctx, pixRequestFor(order, user))
	if err != nil {
		h.log.Error("pix creation failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
		if uerr := h.db.WithContext(ctx).Model(&order).Update("status", models.OrderStatusCancelled).Error; uerr != nil {
			h.log.Warn("failed to cancel order", zap.String("order_number", order.OrderNumber), zap.Error(uerr))
		}
		return fiber.NewError(fiber.StatusBadGateway, "could not create PIX payment")
	}

	order.PaymentID = payment.ID
	order.PixQRCode = payment.QRCode
	order.PixQRCodeImage = payment.QRCodeImage
	order.PixTicketURL = payment.TicketURL
	order.PixExpiresAt = payment.ExpiresAt
	if err := h.db.WithContext(ctx).Model(&order).Updates(map[string]any{
		"payment_id":        order.PaymentID,
		"pix_qr_code":       order.PixQRCode,
		"pix_qr_code_image": order.PixQRCodeImage,
		"pix_ticket_url":    order.PixTicketURL,
		"pix_expires_at":    order.PixExpiresAt,
	}).Error; err != nil {
		return err
	}

	if _, err := h.carts.Clear(ctx, key); err != nil {
		h.log.Warn("failed to clear cart after checkout", zap.String("order_number", order.OrderNumber), zap.Error(err))
	}

	h.notify(order, user)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"order":   order,
			"payment": payment,
		},
	})
}

func (h *OrderHandler) loadShipping(ctx context.Context, ref string) (*models.ShippingMethod, error) {
	if ref == "" {
		return nil, nil
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid shipping method")
	}
	var method models.ShippingMethod
	if err := h.db.WithContext(ctx).First(&method, "id = ? AND active = ?", id, true).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, fiber.NewError(fiber.StatusBadRequest, "shipping method not available")
		}
		return nil, err
	}
	return &method, nil
}

func (h *OrderHandler) loadAddress(ctx context.Context, userID uuid.UUID, ref string) (models.UserAddress, error) {
	var address models.UserAddress
	id, err := uuid.Parse(ref)
	if err != nil {
		return address, fiber.NewError(fiber.StatusBadRequest, "invalid address")
	}
	if err := h.db.WithContext(ctx).First(&address, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if database.IsNotFound(err) {
			return address, fiber.NewError(fiber.StatusNotFound, "address not found")
		}
		return address, err
	}
	return address, nil
}

func pixRequestFor(order models.Order, user models.User) services.PixRequest {
	items := make([]services.PixOrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		var productID string
		if item.ProductID != nil {
			productID = item.ProductID.String()
		}
		items = append(items, services.PixOrderItem{
			ProductID: productID,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	return services.PixRequest{
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		Amount:      order.TotalAmount,
		Description: "Pedido " + order.OrderNumber,
		Payer: services.PixPayer{
			Name:  user.FullName,
			Email: user.Email,
			CPF:   user.CPF,
			Phone: user.Phone,
		},
		Items: items,
		ShippingAddress: services.PixShippingAddress{
			PostalCode:   order.PostalCode,
			Street:       order.Street,
			Number:       order.Number,
			Complement:   order.Complement,
			Neighborhood: order.Neighborhood,
			City:         order.City,
			State:        order.State,
		},
	}
}

func (h *OrderHandler) notify(order models.Order, user models.User) {
	if h.telegram == nil {
		return
	}
	items := make([]services.OrderItemNotification, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, services.OrderItemNotification{
			Name:     item.ProductName,
			Quantity: item.Quantity,
			Price:    item.UnitPrice,
		})
	}
	msg := services.OrderNotification{
		OrderNumber:   order.OrderNumber,
		StoreSlug:     order.StoreSlug,
		Items:         items,
		TotalAmount:   order.TotalAmount,
		CustomerName:  user.FullName,
		CustomerPhone: user.Phone,
		City:          order.City,
		Status:        order.Status,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := h.telegram.NotifyNewOrder(ctx, msg); err != nil {
			h.log.Warn("telegram order notification failed", zap.String("order_number", msg.OrderNumber), zap.Error(err))
		}
	}()
}

// ListOrders returns orders for authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Order{}).Where("user_id = ?", userID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": orders, "pagination": pg.Meta(total)})
}

// GetOrder returns a single order for the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var order models.Order
	if err := h.db.WithContext(c.UserContext()).Preload("Items").
		First(&order, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if database.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// TrackOrder returns the status timeline of one of the shopper's orders by
// its order number.
func (h *OrderHandler) TrackOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var order models.Order
	if err := h.db.WithContext(c.UserContext()).
		First(&order, "order_number = ? AND user_id = ?", strings.ToUpper(c.Params("number")), userID).Error; err != nil {
		if database.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"order_number":  order.OrderNumber,
			"status":        order.Status,
			"placed_at":     order.PlacedAt,
			"paid_at":       order.PaidAt,
			"tracking_code": order.TrackingCode,
			"total_amount":  order.TotalAmount,
		},
	})
}

// AdminListOrders lists every order, newest first.
func (h *OrderHandler) AdminListOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Order{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if slug := c.Query("store"); slug != "" {
		query = query.Where("store_slug = ?", cart.NormaliseSlug(slug))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("Items").Preload("User").
		Order("placed_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": orders, "pagination": pg.Meta(total)})
}

type updateOrderStatusRequest struct {
	Status       string  `json:"status"`
	TrackingCode *string `json:"tracking_code"`
}

// AdminUpdateStatus moves an order through its lifecycle.
func (h *OrderHandler) AdminUpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req updateOrderStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if !models.ValidOrderStatus(req.Status) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid status")
	}

	updates := map[string]any{"status": req.Status}
	if req.TrackingCode != nil {
		updates["tracking_code"] = strings.TrimSpace(*req.TrackingCode)
	}
	if req.Status == models.OrderStatusPaid {
		updates["paid_at"] = h.now().UTC()
	}

	res := h.db.WithContext(c.UserContext()).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	}

	var order models.Order
	if err := h.db.WithContext(c.UserContext()).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order})
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func RegisterOrderRoutes(router fiber.Router, h *OrderHandler) {
	router.Post("/checkout", h.Checkout)
	router.Get("/", h.ListOrders)
	router.Get("/track/:number", h.TrackOrder)
	router.Get("/:id", h.GetOrder)
}
