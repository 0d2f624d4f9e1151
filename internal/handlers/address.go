package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/vitrine/internal/services"
)

// PostalCodeLookup resolves a CEP to an address; nil means unknown.
type PostalCodeLookup interface {
	Lookup(ctx context.Context, cep string) (*services.Address, error)
}

type AddressHandler struct {
	cep PostalCodeLookup
}

func NewAddressHandler(cep PostalCodeLookup) *AddressHandler {
	return &AddressHandler{cep: cep}
}

// LookupPostalCode answers 200 with null data for a well-formed CEP that
// does not exist.
func (h *AddressHandler) LookupPostalCode(c *fiber.Ctx) error {
	address, err := h.cep.Lookup(c.UserContext(), c.Params("cep"))
	if errors.Is(err, services.ErrInvalidPostalCode) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, "postal code service unavailable")
	}
	if address == nil {
		return c.JSON(fiber.Map{"success": true, "data": nil})
	}
	return c.JSON(fiber.Map{"success": true, "data": address})
}
