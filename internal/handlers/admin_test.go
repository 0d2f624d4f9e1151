package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/vitrine/internal/middleware"
	"github.com/example/vitrine/internal/services"
)

type stubCodes struct {
	category, brand string
	gtinErr         error
}

func (s *stubCodes) GenerateSKU(_ context.Context, category, brand string) (string, error) {
	s.category, s.brand = category, brand
	return services.FormatSKU(services.SKUPrefix(category, brand), 1), nil
}

func (s *stubCodes) GenerateGTIN(context.Context) (string, error) {
	if s.gtinErr != nil {
		return "", s.gtinErr
	}
	return "7891234567895", nil
}

func newCodesApp(codes CodeGenerator) *fiber.App {
	h := NewAdminHandler(nil, codes)
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(nil)})
	app.Post("/codes/sku", h.GenerateSKU)
	app.Post("/codes/gtin", h.GenerateGTIN)
	app.Get("/codes/gtin/:code", h.ValidateGTIN)
	return app
}

func TestGenerateSKUEndpoint(t *testing.T) {
	codes := &stubCodes{}
	app := newCodesApp(codes)

	req := httptest.NewRequest("POST", "/codes/sku", strings.NewReader(`{"category":"Camisetas","brand":"Órbita"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Data struct {
			SKU string `json:"sku"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "CAM-ORB-0001", out.Data.SKU)
	assert.Equal(t, "Órbita", codes.brand)
}

func TestGenerateGTINEndpoint(t *testing.T) {
	app := newCodesApp(&stubCodes{})
	resp, err := app.Test(httptest.NewRequest("POST", "/codes/gtin", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	app = newCodesApp(&stubCodes{gtinErr: errors.New("boom")})
	resp, err = app.Test(httptest.NewRequest("POST", "/codes/gtin", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestValidateGTINEndpoint(t *testing.T) {
	app := newCodesApp(&stubCodes{})

	for code, want := range map[string]bool{"4006381333931": true, "4006381333932": false, "123": false} {
		resp, err := app.Test(httptest.NewRequest("GET", "/codes/gtin/"+code, nil))
		require.NoError(t, err)
		var out struct {
			Data struct {
				Valid bool `json:"valid"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, want, out.Data.Valid, code)
	}
}
