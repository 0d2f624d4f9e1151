package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/vitrine/internal/middleware"
	"github.com/example/vitrine/internal/storage"
)

func multipartBody(t *testing.T, field string, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte("img:" + name))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func newUploadApp(u storage.Uploader) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(nil)})
	RegisterUploadRoutes(app.Group("/uploads"), NewUploadHandler(u, nil))
	return app
}

type uploadResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Results  []uploadResult `json:"results"`
		Uploaded int            `json:"uploaded"`
		Failed   int            `json:"failed"`
		URL      string         `json:"url"`
		Path     string         `json:"path"`
	} `json:"data"`
}

func TestUploadImagesPartialSuccess(t *testing.T) {
	mem := storage.NewMemoryUploader()
	mem.FailOn = func(p string) bool { return strings.HasSuffix(p, ".gif") }
	app := newUploadApp(mem)

	body, ct := multipartBody(t, "files", "a.jpg", "b.gif", "c.txt", "d.PNG")
	req := httptest.NewRequest("POST", "/uploads/images?product_id=5f0c1f7e-8d5a-4c1e-9c2b-1a2b3c4d5e6f", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Data.Uploaded)
	assert.Equal(t, 2, out.Data.Failed)
	require.Len(t, out.Data.Results, 4)
	assert.True(t, strings.HasPrefix(out.Data.Results[0].Path, "products/5f0c1f7e-8d5a-4c1e-9c2b-1a2b3c4d5e6f/"))
	assert.NotEmpty(t, out.Data.Results[1].Error)
	assert.NotEmpty(t, out.Data.Results[2].Error)
	assert.True(t, strings.HasSuffix(out.Data.Results[3].Path, ".png"))
	assert.Equal(t, 2, mem.Len())
}

func TestUploadImagesWithoutProductGoesToTemp(t *testing.T) {
	mem := storage.NewMemoryUploader()
	app := newUploadApp(mem)

	body, ct := multipartBody(t, "file", "a.webp")
	req := httptest.NewRequest("POST", "/uploads/images", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req)
	require.NoError(t, err)

	var out uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Data.Results, 1)
	assert.True(t, strings.HasPrefix(out.Data.Results[0].Path, "temp/"))
	assert.Equal(t, "memory://"+out.Data.Results[0].Path, out.Data.Results[0].URL)
}

func TestUploadImagesAllFailed(t *testing.T) {
	app := newUploadApp(storage.NewMemoryUploader())

	body, ct := multipartBody(t, "files", "notes.txt")
	req := httptest.NewRequest("POST", "/uploads/images", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUploadImagesRejectsBadProductID(t *testing.T) {
	app := newUploadApp(storage.NewMemoryUploader())

	body, ct := multipartBody(t, "files", "a.jpg")
	req := httptest.NewRequest("POST", "/uploads/images?product_id=../etc", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUploadLogo(t *testing.T) {
	mem := storage.NewMemoryUploader()
	app := newUploadApp(mem)

	body, ct := multipartBody(t, "file", "logo.svg")
	req := httptest.NewRequest("POST", "/uploads/logo", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, strings.HasPrefix(out.Data.Path, "logos/"))
	assert.Equal(t, 1, mem.Len())
}

func TestDeleteImage(t *testing.T) {
	mem := storage.NewMemoryUploader()
	mem.Objects["temp/x.jpg"] = []byte("x")
	app := newUploadApp(mem)

	req := httptest.NewRequest("DELETE", "/uploads/images", strings.NewReader(`{"path":"/temp/x.jpg"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, mem.Len())

	req = httptest.NewRequest("DELETE", "/uploads/images", strings.NewReader(`{"path":"../secret"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
