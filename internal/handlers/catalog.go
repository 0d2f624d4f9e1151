package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/vitrine/internal/cache"
	"github.com/example/vitrine/internal/database"
	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/utils"
)

// CatalogHandler manages categories and subcategories.
type CatalogHandler struct {
	db    *gorm.DB
	cache *cache.QueryCache
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(db *gorm.DB, qc *cache.QueryCache) *CatalogHandler {
	return &CatalogHandler{db: db, cache: qc}
}

func (h *CatalogHandler) invalidate() {
	h.cache.Invalidate("categories:")
	h.cache.Invalidate("homepage:")
}

// ListCategories returns active categories with their subcategories, in
// display order. Admins may ask for inactive ones too.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	all := c.QueryBool("all")
	key := "categories:list:" + map[bool]string{true: "all", false: "active"}[all]

	categories, err := cache.Fetch(h.cache, key, func() ([]models.Category, error) {
		query := h.db.WithContext(c.UserContext()).
			Preload("Subcategories", func(db *gorm.DB) *gorm.DB {
				if !all {
					db = db.Where("active = ?", true)
				}
				return db.Order("display_order asc, name asc")
			}).
			Order("display_order asc, name asc")
		if !all {
			query = query.Where("active = ?", true)
		}
		var items []models.Category
		err := query.Find(&items).Error
		return items, err
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": categories})
}

// GetCategory returns a category by id or slug.
func (h *CatalogHandler) GetCategory(c *fiber.Ctx) error {
	ref := c.Params("id")
	query := h.db.WithContext(c.UserContext()).Preload("Subcategories", "active = ?", true)
	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", strings.ToLower(ref))
	}

	var category models.Category
	if err := query.First(&category).Error; err != nil {
		if database.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, "category not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": category})
}

// CreateCategory persists a new category.
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	payload := models.Category{Active: true}
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	payload.ID = uuid.Nil
	payload.Subcategories = nil
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}

	slug, err := uniqueSlug(h.db.WithContext(c.UserContext()), &models.Category{}, slugOr(payload.Slug, payload.Name))
	if err != nil {
		return err
	}
	payload.Slug = slug

	if err := h.db.WithContext(c.UserContext()).Create(&payload).Error; err != nil {
		return err
	}
	h.invalidate()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": payload})
}

// UpdateCategory updates an existing category.
func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var category models.Category
	if err := h.db.WithContext(c.UserContext()).First(&category, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, "category not found")
		}
		return err
	}

	var payload models.Category
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	category.Name = strings.TrimSpace(payload.Name)
	if category.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	category.Slug = slugOr(payload.Slug, category.Name)
	category.Description = payload.Description
	category.ImageURL = payload.ImageURL
	category.DisplayOrder = payload.DisplayOrder
	category.Active = payload.Active

	if err := h.db.WithContext(c.UserContext()).Save(&category).Error; err != nil {
		return err
	}
	h.invalidate()

	return c.JSON(fiber.Map{"success": true, "data": category})
}

// DeleteCategory removes a category and its subcategories. Products keep
// existing without a category.
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).
			Updates(map[string]any{"category_id": nil, "subcategory_id": nil}).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id = ?", id).Delete(&models.Subcategory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id = ?", id).Delete(&models.HomepageCategory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Category{}, "id = ?", id).Error
	}); err != nil {
		return err
	}
	h.invalidate()
	h.cache.Invalidate("products:")

	return c.SendStatus(fiber.StatusNoContent)
}

// ListSubcategories returns the subcategories of a category.
func (h *CatalogHandler) ListSubcategories(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.WithContext(c.UserContext()).Model(&models.Subcategory{})
	if v := c.Query("category_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid category_id")
		}
		query = query.Where("category_id = ?", id)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var items []models.Subcategory
	if err := query.Order("display_order asc, name asc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": items, "pagination": pg.Meta(total)})
}

// CreateSubcategory persists a subcategory under an existing category.
func (h *CatalogHandler) CreateSubcategory(c *fiber.Ctx) error {
	payload := models.Subcategory{Active: true}
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	payload.ID = uuid.Nil
	payload.Category = nil
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" || payload.CategoryID == uuid.Nil {
		return fiber.NewError(fiber.StatusBadRequest, "name and category_id are required")
	}

	var parent int64
	if err := h.db.WithContext(c.UserContext()).Model(&models.Category{}).
		Where("id = ?", payload.CategoryID).Count(&parent).Error; err != nil {
		return err
	}
	if parent == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "category does not exist")
	}
	payload.Slug = slugOr(payload.Slug, payload.Name)

	if err := h.db.WithContext(c.UserContext()).Create(&payload).Error; err != nil {
		return err
	}
	h.invalidate()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": payload})
}

// UpdateSubcategory updates a subcategory.
func (h *CatalogHandler) UpdateSubcategory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var item models.Subcategory
	if err := h.db.WithContext(c.UserContext()).First(&item, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, "subcategory not found")
		}
		return err
	}

	var payload models.Subcategory
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if name := strings.TrimSpace(payload.Name); name != "" {
		item.Name = name
	}
	item.Slug = slugOr(payload.Slug, item.Name)
	item.DisplayOrder = payload.DisplayOrder
	item.Active = payload.Active

	if err := h.db.WithContext(c.UserContext()).Save(&item).Error; err != nil {
		return err
	}
	h.invalidate()

	return c.JSON(fiber.Map{"success": true, "data": item})
}

// DeleteSubcategory removes a subcategory.
func (h *CatalogHandler) DeleteSubcategory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("subcategory_id = ?", id).
			Update("subcategory_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Subcategory{}, "id = ?", id).Error
	}); err != nil {
		return err
	}
	h.invalidate()

	return c.SendStatus(fiber.StatusNoContent)
}

func slugOr(slug, name string) string {
	if s := utils.Slugify(slug); s != "" {
		return s
	}
	return utils.Slugify(name)
}
