package handlers

import (
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/vitrine/internal/storage"
)

const maxImagesPerRequest = 10

// UploadHandler stores product images and the store logo.
type UploadHandler struct {
	uploader storage.Uploader
	log      *zap.Logger
	now      func() time.Time
}

func NewUploadHandler(uploader storage.Uploader, log *zap.Logger) *UploadHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UploadHandler{uploader: uploader, log: log, now: time.Now}
}

// multipartFile keeps the client's content type only when it is an image
// type; otherwise it is derived from the extension.
func multipartFile(fh *multipart.FileHeader) storage.File {
	contentType := fh.Header.Get(fiber.HeaderContentType)
	if !strings.HasPrefix(contentType, "image/") {
		contentType = ""
	}
	return storage.File{
		Name:        fh.Filename,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

type uploadResult struct {
	Name  string `json:"name"`
	Path  string `json:"path,omitempty"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

// UploadImages accepts one or more "files" (or a single "file") for the
// product in ?product_id=. Without a product id images land under temp/.
// Each file succeeds or fails on its own.
func (h *UploadHandler) UploadImages(c *fiber.Ctx) error {
	productID := strings.TrimSpace(c.Query("product_id"))
	if productID != "" {
		if _, err := uuid.Parse(productID); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid product id")
		}
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required")
	}
	headers := make([]*multipart.FileHeader, 0, len(form.File["files"])+1)
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["file"]...)
	if len(headers) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no files provided")
	}
	if len(headers) > maxImagesPerRequest {
		return fiber.NewError(fiber.StatusBadRequest, "too many files")
	}

	files := make([]storage.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, multipartFile(fh))
	}

	results := storage.UploadImages(c.UserContext(), h.uploader, productID, files, h.now)

	out := make([]uploadResult, 0, len(results))
	var uploaded int
	for _, r := range results {
		item := uploadResult{Name: r.Name, Path: r.Path, URL: r.URL}
		if r.Failed() {
			item.Error = r.Err.Error()
			h.log.Warn("image upload failed", zap.String("file", r.Name), zap.Error(r.Err))
		} else {
			uploaded++
		}
		out = append(out, item)
	}

	status := fiber.StatusOK
	if uploaded == 0 {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(fiber.Map{
		"success": uploaded > 0,
		"data": fiber.Map{
			"results":  out,
			"uploaded": uploaded,
			"failed":   len(out) - uploaded,
		},
	})
}

// UploadLogo replaces the store logo image and returns its URL. The caller
// saves the URL into the store configuration.
func (h *UploadHandler) UploadLogo(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file is required")
	}
	ext, err := storage.ImageExtension(fh.Filename)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	objectPath, err := storage.LogoPath(ext, h.now())
	if err != nil {
		return err
	}

	body, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unreadable file")
	}
	defer body.Close()

	url, err := h.uploader.Upload(c.UserContext(), objectPath, storage.ContentTypeFor(ext), body)
	if err != nil {
		h.log.Error("logo upload failed", zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, "upload failed")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"path": objectPath, "url": url},
	})
}

type deleteUploadRequest struct {
	Path string `json:"path"`
}

func (h *UploadHandler) DeleteImage(c *fiber.Ctx) error {
	var req deleteUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	objectPath := strings.TrimPrefix(strings.TrimSpace(req.Path), "/")
	if objectPath == "" || strings.Contains(objectPath, "..") {
		return fiber.NewError(fiber.StatusBadRequest, "invalid path")
	}
	if err := h.uploader.Delete(c.UserContext(), objectPath); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func RegisterUploadRoutes(router fiber.Router, h *UploadHandler) {
	router.Post("/images", h.UploadImages)
	router.Post("/logo", h.UploadLogo)
	router.Delete("/images", h.DeleteImage)
}
