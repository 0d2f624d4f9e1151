package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/example/vitrine/internal/cache"
	"github.com/example/vitrine/internal/database"
	"github.com/example/vitrine/internal/middleware"
	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/pricing"
	"github.com/example/vitrine/internal/utils"
)

// FeeSource provides the fee settings used for automatic prices.
type FeeSource interface {
	FeeConfiguration(ctx context.Context) (*pricing.FeeConfiguration, error)
}

var errImageRemovalUnconfirmed = errors.New("saving would remove every stored image; resend with confirm_image_removal=true")

// ProductHandler manages product CRUD.
type ProductHandler struct {
	db    *gorm.DB
	cache *cache.QueryCache
	fees  FeeSource
	now   func() time.Time
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB, qc *cache.QueryCache, fees FeeSource) *ProductHandler {
	return &ProductHandler{db: db, cache: qc, fees: fees, now: time.Now}
}

// ListProducts returns paginated products with optional filters. Inactive
// products are only listed for admins asking for them.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	includeInactive := middleware.IsAdmin(c) && c.QueryBool("include_inactive")
	key := "products:" + strconv.FormatBool(includeInactive) + ":" + string(c.Request().URI().QueryString())

	result, err := cache.Fetch(h.cache, key, func() (fiber.Map, error) {
		return h.listProducts(c, includeInactive)
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (h *ProductHandler) listProducts(c *fiber.Ctx, includeInactive bool) (fiber.Map, error) {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Product{})

	if !includeInactive {
		query = query.Where("products.active = ?", true)
	}
	if v := c.Query("category_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			query = query.Where("products.category_id = ?", id)
		}
	}
	if v := c.Query("subcategory_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			query = query.Where("products.subcategory_id = ?", id)
		}
	}
	if slug := strings.TrimSpace(c.Query("category")); slug != "" {
		query = query.Joins("JOIN categories ON categories.id = products.category_id").
			Where("categories.slug = ?", slug)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + search + "%"
		query = query.Where("products.name ILIKE ? OR products.description ILIKE ? OR products.sku ILIKE ? OR products.brand ILIKE ?", q, q, q, q)
	}
	if minPrice := c.Query("min_price"); minPrice != "" {
		if val, err := strconv.ParseFloat(minPrice, 64); err == nil {
			query = query.Where("products.price >= ?", val)
		}
	}
	if maxPrice := c.Query("max_price"); maxPrice != "" {
		if val, err := strconv.ParseFloat(maxPrice, 64); err == nil {
			query = query.Where("products.price <= ?", val)
		}
	}
	if c.QueryBool("in_stock") {
		query = query.Where("products.stock_quantity > 0")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	order := "products.created_at desc"
	switch c.Query("sort") {
	case "price_asc":
		order = "products.price asc"
	case "price_desc":
		order = "products.price desc"
	case "name":
		order = "products.name asc"
	}

	var products []models.Product
	if err := query.Preload("Category").Preload("Variants", "active = ?", true).
		Limit(pg.Limit).Offset(pg.Offset).
		Order(order).
		Find(&products).Error; err != nil {
		return nil, err
	}

	return fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pg.Meta(total),
	}, nil
}

// GetProduct loads a product by id or slug.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	ref := c.Params("id")
	query := h.db.WithContext(c.UserContext()).
		Preload("Category").
		Preload("Subcategory").
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") })

	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", ref)
	}

	var product models.Product
	if err := query.First(&product).Error; err != nil {
		if database.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}
	if !product.Active && !middleware.IsAdmin(c) {
		return fiber.NewError(fiber.StatusNotFound, "product not found")
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

type productRequest struct {
	Slug                string           `json:"slug"`
	Name                string           `json:"name"`
	Description         string           `json:"description"`
	SKU                 string           `json:"sku"`
	GTIN                string           `json:"gtin"`
	Brand               string           `json:"brand"`
	CategoryID          string           `json:"category_id"`
	SubcategoryID       string           `json:"subcategory_id"`
	CostPrice           float64          `json:"cost_price"`
	Price               float64          `json:"price"`
	CompareAtPrice      float64          `json:"compare_at_price"`
	AutoPricing         bool             `json:"auto_pricing"`
	Active              *bool            `json:"active"`
	StockQuantity       int              `json:"stock_quantity"`
	Images              []string         `json:"images"`
	Variants            []variantRequest `json:"variants"`
	ConfirmImageRemoval bool             `json:"confirm_image_removal"`
}

// variantRequest has no price field: the variant price is always derived
// from its cost.
type variantRequest struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Name          string  `json:"name"`
	Value         string  `json:"value"`
	CostPrice     float64 `json:"cost_price"`
	StockQuantity int     `json:"stock_quantity"`
	ImageURL      string  `json:"image_url"`
	Active        *bool   `json:"active"`
}

// CreateProduct handles product creation.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	fees, err := h.fees.FeeConfiguration(c.UserContext())
	if err != nil {
		return err
	}

	product, err := buildProduct(req, fees, middleware.CanAutoPrice(c), h.now())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if product.Slug == "" {
		slug, err := uniqueSlug(h.db.WithContext(c.UserContext()), &models.Product{}, utils.Slugify(product.Name))
		if err != nil {
			return err
		}
		product.Slug = slug
	}

	if err := h.db.WithContext(c.UserContext()).Create(&product).Error; err != nil {
		return err
	}
	h.cache.Invalidate("products:")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct updates an existing product and replaces its variants in the
// same transaction.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var existing models.Product
	if err := h.db.WithContext(c.UserContext()).First(&existing, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, "product not found")
		}
		return err
	}

	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := guardImageRemoval(existing.Images, req.Images, req.ConfirmImageRemoval); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}

	fees, err := h.fees.FeeConfiguration(c.UserContext())
	if err != nil {
		return err
	}

	product, err := buildProduct(req, fees, middleware.CanAutoPrice(c), h.now())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt
	if product.Slug == "" {
		product.Slug = existing.Slug
	}
	for i := range product.Variants {
		product.Variants[i].ProductID = existing.ID
	}

	if err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", existing.ID).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		variants := product.Variants
		product.Variants = nil
		if err := tx.Model(&existing).Select("*").Omit("ID", "CreatedAt").Updates(&product).Error; err != nil {
			return err
		}
		product.Variants = variants
		if len(variants) > 0 {
			return tx.Create(&product.Variants).Error
		}
		return nil
	}); err != nil {
		return err
	}
	h.cache.Invalidate("products:")

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct removes a product and its variants.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.FeaturedProduct{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, "id = ?", id).Error
	}); err != nil {
		return err
	}
	h.cache.Invalidate("products:")
	h.cache.Invalidate("featured:")

	return c.SendStatus(fiber.StatusNoContent)
}

// buildProduct turns a request into a product with its price and variant
// prices resolved.
func buildProduct(req productRequest, fees *pricing.FeeConfiguration, canAutoPrice bool, now time.Time) (models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Product{}, errors.New("name is required")
	}
	if req.CostPrice < 0 || req.StockQuantity < 0 || req.CompareAtPrice < 0 {
		return models.Product{}, errors.New("cost_price, compare_at_price and stock_quantity cannot be negative")
	}

	product := models.Product{
		Slug:           strings.TrimSpace(req.Slug),
		Name:           name,
		Description:    req.Description,
		SKU:            strings.TrimSpace(req.SKU),
		GTIN:           strings.TrimSpace(req.GTIN),
		Brand:          strings.TrimSpace(req.Brand),
		CostPrice:      req.CostPrice,
		CompareAtPrice: req.CompareAtPrice,
		AutoPricing:    req.AutoPricing,
		Active:         req.Active == nil || *req.Active,
		StockQuantity:  req.StockQuantity,
		Images:         pq.StringArray(cleanImages(req.Images)),
	}

	if req.CategoryID != "" {
		id, err := uuid.Parse(req.CategoryID)
		if err != nil {
			return product, errors.New("invalid category_id")
		}
		product.CategoryID = &id
	}
	if req.SubcategoryID != "" {
		id, err := uuid.Parse(req.SubcategoryID)
		if err != nil {
			return product, errors.New("invalid subcategory_id")
		}
		product.SubcategoryID = &id
	}

	price, err := resolvePrice(req.Price, req.CostPrice, req.AutoPricing, canAutoPrice, fees)
	if err != nil {
		return product, err
	}
	product.Price = price

	variants, err := buildVariants(req.Variants, fees, now)
	if err != nil {
		return product, err
	}
	product.Variants = variants
	return product, nil
}

// resolvePrice applies the auto-pricing rule: the price comes from the cost
// only when the toggle is on, the caller may auto-price and a cost is known.
func resolvePrice(manual, cost float64, toggle, canAutoPrice bool, fees *pricing.FeeConfiguration) (float64, error) {
	if pricing.AutoPricingActive(toggle, canAutoPrice) && fees != nil && cost > 0 {
		price, err := fees.Price(cost)
		if err != nil {
			return 0, err
		}
		return price, nil
	}
	if manual < 0 {
		return 0, errors.New("price cannot be negative")
	}
	return manual, nil
}

func buildVariants(reqs []variantRequest, fees *pricing.FeeConfiguration, now time.Time) ([]models.ProductVariant, error) {
	variants := make([]models.ProductVariant, 0, len(reqs))
	for i, v := range reqs {
		if !models.ValidVariantType(v.Type) {
			return nil, errors.New("variant type must be color, size or model")
		}
		if v.CostPrice < 0 || v.StockQuantity < 0 {
			return nil, errors.New("variant cost_price and stock_quantity cannot be negative")
		}

		id := strings.TrimSpace(v.ID)
		if id == "" || len(id) > 26 {
			// Consecutive ids keep creation order for variants built in one request.
			id = models.NewVariantID(now.Add(time.Duration(i) * time.Millisecond))
		}

		variant := models.ProductVariant{
			ID:            id,
			Type:          v.Type,
			Name:          strings.TrimSpace(v.Name),
			Value:         strings.TrimSpace(v.Value),
			StockQuantity: v.StockQuantity,
			ImageURL:      strings.TrimSpace(v.ImageURL),
			Active:        v.Active == nil || *v.Active,
		}
		if err := variant.ApplyCostPrice(v.CostPrice, fees); err != nil {
			return nil, err
		}
		variants = append(variants, variant)
	}
	return variants, nil
}

// guardImageRemoval refuses a save that keeps none of the stored images
// unless the caller confirmed it.
func guardImageRemoval(stored, staged []string, confirmed bool) error {
	if len(stored) == 0 || confirmed {
		return nil
	}
	keep := make(map[string]struct{}, len(staged))
	for _, img := range staged {
		keep[strings.TrimSpace(img)] = struct{}{}
	}
	for _, img := range stored {
		if _, ok := keep[img]; ok {
			return nil
		}
	}
	return errImageRemovalUnconfirmed
}

// uniqueSlug returns base, or base with a short suffix when base is taken.
func uniqueSlug(db *gorm.DB, model any, base string) (string, error) {
	if base == "" {
		base = "item"
	}
	var count int64
	if err := db.Model(model).Where("slug = ?", base).Count(&count).Error; err != nil {
		return "", err
	}
	if count == 0 {
		return base, nil
	}
	return base + "-" + uuid.NewString()[:6], nil
}

func cleanImages(images []string) []string {
	out := make([]string, 0, len(images))
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		img = strings.TrimSpace(img)
		if img == "" {
			continue
		}
		if _, ok := seen[img]; ok {
			continue
		}
		seen[img] = struct{}{}
		out = append(out, img)
	}
	return out
}

// RegisterProductRoutes attaches public product routes.
func (h *ProductHandler) RegisterProductRoutes(router fiber.Router) {
	router.Get("/", h.ListProducts)
	router.Get("/:id", h.GetProduct)
}

// RegisterAdminRoutes attaches product write routes.
func (h *ProductHandler) RegisterAdminRoutes(router fiber.Router) {
	router.Get("/", h.ListProducts)
	router.Post("/", h.CreateProduct)
	router.Put("/:id", h.UpdateProduct)
	router.Delete("/:id", h.DeleteProduct)
}
