package handlers

import (
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/vitrine/internal/cache"
	"github.com/example/vitrine/internal/database"
	"github.com/example/vitrine/internal/models"
)

// resource is the admin CRUD shared by the homepage content tables.
type resource[T any] struct {
	db      *gorm.DB
	cache   *cache.QueryCache
	name    string
	order   string
	preload string
}

func (r resource[T]) invalidate() {
	r.cache.Invalidate("homepage:")
	r.cache.Invalidate("featured:")
}

func (r resource[T]) query(c *fiber.Ctx) *gorm.DB {
	q := r.db.WithContext(c.UserContext())
	if r.preload != "" {
		q = q.Preload(r.preload)
	}
	return q.Order(r.order)
}

// listActive is cached under key and serves the storefront.
func (r resource[T]) listActive(c *fiber.Ctx, key string) error {
	items, err := cache.Fetch(r.cache, key, func() ([]T, error) {
		var items []T
		err := r.query(c).Where("active = ?", true).Find(&items).Error
		return items, err
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

func (r resource[T]) listAll(c *fiber.Ctx) error {
	var items []T
	if err := r.query(c).Find(&items).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

type defaulter interface {
	ApplyDefaults()
}

func (r resource[T]) create(c *fiber.Ctx) error {
	var item T
	if d, ok := any(&item).(defaulter); ok {
		d.ApplyDefaults()
	}
	if err := c.BodyParser(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := r.db.WithContext(c.UserContext()).Create(&item).Error; err != nil {
		return err
	}
	r.invalidate()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": item})
}

func (r resource[T]) update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	db := r.db.WithContext(c.UserContext())
	var item T
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, r.name+" not found")
		}
		return err
	}
	if err := c.BodyParser(&item); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := db.Model(new(T)).Where("id = ?", id).
		Select("*").Omit("id", "created_at", clause.Associations).
		Updates(&item).Error; err != nil {
		return err
	}

	var saved T
	if err := r.query(c).First(&saved, "id = ?", id).Error; err != nil {
		return err
	}
	r.invalidate()
	return c.JSON(fiber.Map{"success": true, "data": saved})
}

func (r resource[T]) remove(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	if err := r.db.WithContext(c.UserContext()).Delete(new(T), "id = ?", id).Error; err != nil {
		return err
	}
	r.invalidate()
	return c.SendStatus(fiber.StatusNoContent)
}

func (r resource[T]) register(router fiber.Router, path string) {
	router.Get(path, r.listAll)
	router.Post(path, r.create)
	router.Put(path+"/:id", r.update)
	router.Delete(path+"/:id", r.remove)
}

// MarketingHandler manages homepage content, shipping methods, the
// newsletter and the assistant knowledge base.
type MarketingHandler struct {
	db    *gorm.DB
	cache *cache.QueryCache

	homepage     resource[models.HomepageCategory]
	featured     resource[models.FeaturedProduct]
	testimonials resource[models.Testimonial]
	shipping     resource[models.ShippingMethod]
	knowledge    resource[models.KnowledgeBaseEntry]
}

// NewMarketingHandler constructs MarketingHandler.
func NewMarketingHandler(db *gorm.DB, qc *cache.QueryCache) *MarketingHandler {
	return &MarketingHandler{
		db:           db,
		cache:        qc,
		homepage:     resource[models.HomepageCategory]{db: db, cache: qc, name: "homepage category", order: "display_order asc", preload: "Category"},
		featured:     resource[models.FeaturedProduct]{db: db, cache: qc, name: "featured product", order: "display_order asc", preload: "Product"},
		testimonials: resource[models.Testimonial]{db: db, cache: qc, name: "testimonial", order: "created_at desc"},
		shipping:     resource[models.ShippingMethod]{db: db, cache: qc, name: "shipping method", order: "price asc"},
		knowledge:    resource[models.KnowledgeBaseEntry]{db: db, cache: qc, name: "knowledge base entry", order: "category asc, created_at asc"},
	}
}

func (h *MarketingHandler) ListHomepageCategories(c *fiber.Ctx) error {
	return h.homepage.listActive(c, "homepage:categories")
}

// GetHomepageCategoryByCategory returns the homepage entry for a category,
// or null data when the category is not placed on the homepage.
func (h *MarketingHandler) GetHomepageCategoryByCategory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("categoryId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var entries []models.HomepageCategory
	if err := h.db.WithContext(c.UserContext()).
		Preload("Category").
		Where("category_id = ?", id).
		Limit(1).
		Find(&entries).Error; err != nil {
		return err
	}
	if len(entries) == 0 {
		return c.JSON(fiber.Map{"success": true, "data": nil})
	}
	return c.JSON(fiber.Map{"success": true, "data": entries[0]})
}

// ListFeaturedProducts skips entries whose product is gone or inactive.
func (h *MarketingHandler) ListFeaturedProducts(c *fiber.Ctx) error {
	items, err := cache.Fetch(h.cache, "featured:list", func() ([]models.FeaturedProduct, error) {
		var items []models.FeaturedProduct
		err := h.db.WithContext(c.UserContext()).
			Preload("Product", "active = ?", true).
			Preload("Product.Variants", "active = ?", true).
			Where("active = ?", true).
			Order("display_order asc").
			Find(&items).Error
		return items, err
	})
	if err != nil {
		return err
	}

	visible := make([]models.FeaturedProduct, 0, len(items))
	for _, item := range items {
		if item.Product != nil {
			visible = append(visible, item)
		}
	}
	return c.JSON(fiber.Map{"success": true, "data": visible})
}

func (h *MarketingHandler) ListTestimonials(c *fiber.Ctx) error {
	return h.testimonials.listActive(c, "homepage:testimonials")
}

func (h *MarketingHandler) ListShippingMethods(c *fiber.Ctx) error {
	return h.shipping.listActive(c, "homepage:shipping")
}

type shippingQuote struct {
	models.ShippingMethod
	Fee float64 `json:"fee"`
}

// QuoteShipping prices every active method for ?subtotal=.
func (h *MarketingHandler) QuoteShipping(c *fiber.Ctx) error {
	subtotal := c.QueryFloat("subtotal")
	if subtotal < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid subtotal")
	}

	var methods []models.ShippingMethod
	if err := h.db.WithContext(c.UserContext()).
		Where("active = ?", true).Order("price asc").
		Find(&methods).Error; err != nil {
		return err
	}

	quotes := make([]shippingQuote, 0, len(methods))
	for _, m := range methods {
		quotes = append(quotes, shippingQuote{ShippingMethod: m, Fee: m.PriceFor(subtotal)})
	}
	return c.JSON(fiber.Map{"success": true, "data": quotes})
}

func (h *MarketingHandler) ListKnowledgeBase(c *fiber.Ctx) error {
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		var items []models.KnowledgeBaseEntry
		if err := h.db.WithContext(c.UserContext()).
			Where("active = ? AND category = ?", true, category).
			Order("created_at asc").
			Find(&items).Error; err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": items})
	}
	return h.knowledge.listActive(c, "homepage:knowledge")
}

// Newsletter

func (h *MarketingHandler) loadNewsletterConfig(c *fiber.Ctx) (models.NewsletterConfig, error) {
	var cfg models.NewsletterConfig
	err := h.db.WithContext(c.UserContext()).Order("created_at asc").First(&cfg).Error
	if database.IsNotFound(err) {
		return models.NewsletterConfig{Title: "Newsletter", ButtonText: "Inscrever"}, nil
	}
	return cfg, err
}

func (h *MarketingHandler) GetNewsletterConfig(c *fiber.Ctx) error {
	cfg, err := cache.Fetch(h.cache, "homepage:newsletter", func() (models.NewsletterConfig, error) {
		return h.loadNewsletterConfig(c)
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cfg})
}

// UpdateNewsletterConfig writes the singleton, creating it on first save.
func (h *MarketingHandler) UpdateNewsletterConfig(c *fiber.Ctx) error {
	current, err := h.loadNewsletterConfig(c)
	if err != nil {
		return err
	}
	id := current.ID
	if err := c.BodyParser(&current); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	current.ID = id

	if err := h.db.WithContext(c.UserContext()).Save(&current).Error; err != nil {
		return err
	}
	h.cache.Invalidate("homepage:newsletter")
	return c.JSON(fiber.Map{"success": true, "data": current})
}

type subscribeRequest struct {
	Email string `json:"email"`
}

// Subscribe adds an email to the newsletter. Subscribing twice is not an error.
func (h *MarketingHandler) Subscribe(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "invalid email")
	}

	sub := models.NewsletterSubscriber{Email: email}
	if err := h.db.WithContext(c.UserContext()).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&sub).Error; err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": fiber.Map{"email": email}})
}

func (h *MarketingHandler) ListSubscribers(c *fiber.Ctx) error {
	var items []models.NewsletterSubscriber
	if err := h.db.WithContext(c.UserContext()).Order("created_at desc").Find(&items).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": items})
}

func RegisterMarketingRoutes(router fiber.Router, h *MarketingHandler) {
	router.Get("/homepage/categories", h.ListHomepageCategories)
	router.Get("/homepage/categories/by-category/:categoryId", h.GetHomepageCategoryByCategory)
	router.Get("/homepage/featured", h.ListFeaturedProducts)
	router.Get("/homepage/testimonials", h.ListTestimonials)
	router.Get("/shipping-methods", h.ListShippingMethods)
	router.Get("/shipping-methods/quote", h.QuoteShipping)
	router.Get("/knowledge-base", h.ListKnowledgeBase)
	router.Get("/newsletter", h.GetNewsletterConfig)
	router.Post("/newsletter/subscribe", h.Subscribe)
}

func RegisterAdminMarketingRoutes(router fiber.Router, h *MarketingHandler) {
	h.homepage.register(router, "/homepage/categories")
	h.featured.register(router, "/homepage/featured")
	h.testimonials.register(router, "/testimonials")
	h.shipping.register(router, "/shipping-methods")
	h.knowledge.register(router, "/knowledge-base")
	router.Put("/newsletter", h.UpdateNewsletterConfig)
	router.Get("/newsletter/subscribers", h.ListSubscribers)
}
