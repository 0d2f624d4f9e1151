package storage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

var allowedImageExt = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
}

// ImageExtension returns the lowercased extension of fileName when it is an
// accepted image type.
func ImageExtension(fileName string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
	if _, ok := allowedImageExt[ext]; !ok {
		return "", fmt.Errorf("storage: unsupported image type %q", ext)
	}
	return ext, nil
}

// ContentTypeFor returns the MIME type registered for ext.
func ContentTypeFor(ext string) string {
	if ct, ok := allowedImageExt[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ProductImagePath builds products/{productID}/{ts}-{rand}.{ext}, or
// temp/{ts}-{rand}.{ext} when the product has no id yet.
func ProductImagePath(productID, ext string, now time.Time) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	return buildImagePath(productID, ext, now, suffix)
}

func buildImagePath(productID, ext string, now time.Time, suffix string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if _, ok := allowedImageExt[ext]; !ok {
		return "", fmt.Errorf("storage: unsupported image type %q", ext)
	}
	name := fmt.Sprintf("%d-%s.%s", now.UnixMilli(), suffix, ext)

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return "temp/" + name, nil
	}
	if strings.ContainsAny(productID, "/\\") || strings.Contains(productID, "..") {
		return "", fmt.Errorf("storage: invalid product id %q", productID)
	}
	return fmt.Sprintf("products/%s/%s", productID, name), nil
}

// LogoPath builds the object path for a store logo.
func LogoPath(ext string, now time.Time) (string, error) {
	p, err := ProductImagePath("", ext, now)
	if err != nil {
		return "", err
	}
	return "logos/" + strings.TrimPrefix(p, "temp/"), nil
}

func randomSuffix() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
