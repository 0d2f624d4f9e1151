package handlers

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/vitrine/internal/models"
	"github.com/example/vitrine/internal/pricing"
)

// StoreConfigStore reads and writes the store configuration singleton.
type StoreConfigStore interface {
	FeeSource
	Get(ctx context.Context) (models.StoreConfig, error)
	Save(ctx context.Context, cfg models.StoreConfig) (models.StoreConfig, error)
}

// StoreConfigHandler serves store settings and price previews.
type StoreConfigHandler struct {
	store StoreConfigStore
}

func NewStoreConfigHandler(store StoreConfigStore) *StoreConfigHandler {
	return &StoreConfigHandler{store: store}
}

// GetConfig returns the store configuration, or defaults when none is saved.
func (h *StoreConfigHandler) GetConfig(c *fiber.Ctx) error {
	cfg, err := h.store.Get(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": cfg})
}

// UpdateConfig validates and saves the store configuration. A fee setup
// that cannot produce a finite price is rejected and nothing is saved.
func (h *StoreConfigHandler) UpdateConfig(c *fiber.Ctx) error {
	var payload models.StoreConfig
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	payload.StoreName = strings.TrimSpace(payload.StoreName)
	if payload.PlatformFeeType == "" {
		payload.PlatformFeeType = pricing.FeePercentage
	}
	if err := payload.FeeConfiguration().Validate(); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	saved, err := h.store.Save(c.UserContext(), payload)
	if err != nil {
		if isFeeConfigError(err) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": saved})
}

type previewRequest struct {
	CostPrice *float64                  `json:"cost_price"`
	Config    *pricing.FeeConfiguration `json:"config"`
}

// PreviewPrice returns the price breakdown for a cost price, using the
// submitted fee configuration or the saved one. A cost that cannot be priced
// yet yields null data.
func (h *StoreConfigHandler) PreviewPrice(c *fiber.Ctx) error {
	var req previewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	fees := req.Config
	if fees == nil {
		saved, err := h.store.FeeConfiguration(c.UserContext())
		if err != nil {
			return err
		}
		fees = saved
	} else if err := fees.Validate(); err != nil {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}

	cost := math.NaN()
	if req.CostPrice != nil {
		cost = *req.CostPrice
	}

	breakdown, err := pricing.GetPriceBreakdown(cost, fees)
	if err != nil {
		if isFeeConfigError(err) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": breakdown})
}

func isFeeConfigError(err error) bool {
	return errors.Is(err, pricing.ErrGatewayFeeTooHigh) ||
		errors.Is(err, pricing.ErrInvalidFeeType) ||
		errors.Is(err, pricing.ErrInvalidFeeValue)
}
