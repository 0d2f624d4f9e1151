package handlers

import (
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/vitrine/internal/database"
	"github.com/example/vitrine/internal/middleware"
	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/services"
)

// ProfileHandler manages user profile endpoints.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

// GetProfile returns authenticated user profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.WithContext(c.UserContext()).Preload("Addresses").First(&user, "id = ?", userID).Error; err != nil {
		if database.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

type updateProfileRequest struct {
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	CPF      *string `json:"cpf"`
}

// normaliseCPF keeps the digits of a CPF and checks its two verifier digits.
func normaliseCPF(raw string) (string, bool) {
	digits := make([]int, 0, 11)
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			digits = append(digits, int(r-'0'))
			b.WriteRune(r)
		case r == '.' || r == '-' || r == ' ':
		default:
			return "", false
		}
	}
	if len(digits) != 11 {
		return "", false
	}

	same := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			same = false
			break
		}
	}
	if same {
		return "", false
	}

	for pos := 9; pos <= 10; pos++ {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += digits[i] * (pos + 1 - i)
		}
		check := (sum * 10) % 11
		if check == 10 {
			check = 0
		}
		if check != digits[pos] {
			return "", false
		}
	}
	return b.String(), true
}

// UpdateProfile updates user profile fields.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]any{}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "full name is required")
		}
		updates["full_name"] = name
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.CPF != nil {
		cpf, ok := normaliseCPF(*req.CPF)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "invalid CPF")
		}
		updates["cpf"] = cpf
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	if err := h.db.WithContext(c.UserContext()).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "profile updated"})
}

// Address endpoints

// ListAddresses returns user addresses, default first.
func (h *ProfileHandler) ListAddresses(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var addresses []models.UserAddress
	if err := h.db.WithContext(c.UserContext()).
		Where("user_id = ?", userID).
		Order("is_default desc, created_at asc").
		Find(&addresses).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": addresses})
}

type addressRequest struct {
	Label        string `json:"label"`
	PostalCode   string `json:"postal_code"`
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	IsDefault    bool   `json:"is_default"`
}

func (r addressRequest) toModel(userID uuid.UUID) (models.UserAddress, error) {
	cep, err := services.NormalizePostalCode(r.PostalCode)
	if err != nil {
		return models.UserAddress{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	address := models.UserAddress{
		UserID:       userID,
		Label:        strings.TrimSpace(r.Label),
		PostalCode:   cep,
		Street:       strings.TrimSpace(r.Street),
		Number:       strings.TrimSpace(r.Number),
		Complement:   strings.TrimSpace(r.Complement),
		Neighborhood: strings.TrimSpace(r.Neighborhood),
		City:         strings.TrimSpace(r.City),
		State:        strings.ToUpper(strings.TrimSpace(r.State)),
		IsDefault:    r.IsDefault,
	}
	if address.Street == "" || address.City == "" || len(address.State) != 2 {
		return models.UserAddress{}, fiber.NewError(fiber.StatusBadRequest, "street, city and state are required")
	}
	return address, nil
}

// clearDefault unsets the default flag on every other address of the user.
func clearDefault(tx *gorm.DB, userID, keep uuid.UUID) error {
	return tx.Model(&models.UserAddress{}).
		Where("user_id = ? AND id <> ?", userID, keep).
		Update("is_default", false).Error
}

// CreateAddress creates an address for the user.
func (h *ProfileHandler) CreateAddress(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	address, err := req.toModel(userID)
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&address).Error; err != nil {
			return err
		}
		if address.IsDefault {
			return clearDefault(tx, userID, address.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": address})
}

// UpdateAddress replaces a user address.
func (h *ProfileHandler) UpdateAddress(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	addrID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	next, err := req.toModel(userID)
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserAddress{}).
			Where("id = ? AND user_id = ?", addrID, userID).
			Select("label", "postal_code", "street", "number", "complement", "neighborhood", "city", "state", "is_default").
			Updates(&next)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "address not found")
		}
		if next.IsDefault {
			return clearDefault(tx, userID, addrID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	next.ID = addrID
	return c.JSON(fiber.Map{"success": true, "data": next})
}

// DeleteAddress removes a user address.
func (h *ProfileHandler) DeleteAddress(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	addrID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	if err := h.db.WithContext(c.UserContext()).
		Where("id = ? AND user_id = ?", addrID, userID).
		Delete(&models.UserAddress{}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "address deleted"})
}
