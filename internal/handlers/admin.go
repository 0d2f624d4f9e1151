package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/services"
	"github.com/example/vitrine/internal/utils"
)

const lowStockThreshold = 5

// CodeGenerator allocates product identification codes.
type CodeGenerator interface {
	GenerateSKU(ctx context.Context, category, brand string) (string, error)
	GenerateGTIN(ctx context.Context) (string, error)
}

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	db    *gorm.DB
	codes CodeGenerator
	now   func() time.Time
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, codes CodeGenerator) *AdminHandler {
	return &AdminHandler{db: db, codes: codes, now: time.Now}
}

// revenueStatuses are the order states that count as money received.
var revenueStatuses = []string{models.OrderStatusPaid, models.OrderStatusShipped, models.OrderStatusDelivered}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	var totalProducts int64
	if err := db.Model(&models.Product{}).Where("active = ?", true).Count(&totalProducts).Error; err != nil {
		return err
	}

	var totalOrders int64
	if err := db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	var totalRevenue float64
	if err := db.Model(&models.Order{}).
		Where("status IN ?", revenueStatuses).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return err
	}

	now := h.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var todayRevenue float64
	if err := db.Model(&models.Order{}).
		Where("status IN ? AND paid_at >= ?", revenueStatuses, startOfDay).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&todayRevenue).Error; err != nil {
		return err
	}

	var lowStock int64
	if err := db.Model(&models.Product{}).
		Where("active = ? AND stock_quantity <= ?", true, lowStockThreshold).
		Count(&lowStock).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":        totalUsers,
			"total_products":     totalProducts,
			"total_orders":       totalOrders,
			"total_revenue":      totalRevenue,
			"today_revenue":      todayRevenue,
			"orders_by_status":   ordersByStatus,
			"low_stock_products": lowStock,
		},
	})
}

// ListAllUsers returns all registered users with pagination and search.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	db := h.db.WithContext(c.UserContext())
	query := db.Model(&models.User{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		query = query.Where("full_name ILIKE ? OR email ILIKE ? OR phone ILIKE ?", like, like, like)
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var users []models.User
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&users).Error; err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	type userStats struct {
		UserID     uuid.UUID
		OrderCount int64
		TotalSpent float64
	}
	var stats []userStats
	if len(ids) > 0 {
		if err := db.Model(&models.Order{}).
			Select("user_id, count(*) as order_count, COALESCE(SUM(CASE WHEN status IN ? THEN total_amount ELSE 0 END), 0) as total_spent", revenueStatuses).
			Where("user_id IN ?", ids).
			Group("user_id").
			Scan(&stats).Error; err != nil {
			return err
		}
	}

	statsMap := make(map[uuid.UUID]userStats, len(stats))
	for _, s := range stats {
		statsMap[s.UserID] = s
	}

	type userResponse struct {
		models.User
		OrderCount int64   `json:"order_count"`
		TotalSpent float64 `json:"total_spent"`
	}

	result := make([]userResponse, len(users))
	for i, u := range users {
		result[i] = userResponse{User: u}
		if s, ok := statsMap[u.ID]; ok {
			result[i].OrderCount = s.OrderCount
			result[i].TotalSpent = s.TotalSpent
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": result, "pagination": pg.Meta(total)})
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateUserRole grants or revokes the admin role.
func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	var req updateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleCustomer {
		return fiber.NewError(fiber.StatusBadRequest, "invalid role")
	}

	res := h.db.WithContext(c.UserContext()).Model(&models.User{}).Where("id = ?", id).Update("role", req.Role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "user not found")
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"id": id, "role": req.Role}})
}

// RecentOrders returns the most recent 5 orders for the dashboard.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	var orders []models.Order
	if err := h.db.WithContext(c.UserContext()).Preload("Items").Preload("User").
		Order("placed_at desc").
		Limit(5).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": orders})
}

type skuRequest struct {
	Category string `json:"category"`
	Brand    string `json:"brand"`
}

// GenerateSKU allocates the next SKU for a category and brand pair.
func (h *AdminHandler) GenerateSKU(c *fiber.Ctx) error {
	var req skuRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	sku, err := h.codes.GenerateSKU(c.UserContext(), req.Category, req.Brand)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"sku": sku}})
}

// GenerateGTIN allocates an unused EAN-13 code.
func (h *AdminHandler) GenerateGTIN(c *fiber.Ctx) error {
	gtin, err := h.codes.GenerateGTIN(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"gtin": gtin}})
}

// ValidateGTIN checks a code's length and check digit.
func (h *AdminHandler) ValidateGTIN(c *fiber.Ctx) error {
	code := strings.TrimSpace(c.Params("code"))
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"gtin": code, "valid": services.ValidGTIN(code)}})
}
