package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.UnixMilli(1760400000000)

func TestBuildImagePath(t *testing.T) {
	p, err := buildImagePath("3f1c", "JPG", fixedNow, "ab12cd34")
	require.NoError(t, err)
	assert.Equal(t, "products/3f1c/1760400000000-ab12cd34.jpg", p)

	p, err = buildImagePath("", ".png", fixedNow, "ab12cd34")
	require.NoError(t, err)
	assert.Equal(t, "temp/1760400000000-ab12cd34.png", p)

	_, err = buildImagePath("../etc", "png", fixedNow, "x")
	assert.Error(t, err)
	_, err = buildImagePath("p1", "exe", fixedNow, "x")
	assert.Error(t, err)
}

func TestProductImagePathIsRandomised(t *testing.T) {
	a, err := ProductImagePath("p1", "webp", fixedNow)
	require.NoError(t, err)
	b, err := ProductImagePath("p1", "webp", fixedNow)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "products/p1/1760400000000-"))
}

func TestLogoPath(t *testing.T) {
	p, err := LogoPath("svg", fixedNow)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, "logos/1760400000000-"), p)
	assert.True(t, strings.HasSuffix(p, ".svg"))
}

func TestImageExtension(t *testing.T) {
	ext, err := ImageExtension("Foto.JPEG")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", ext)
	assert.Equal(t, "image/jpeg", ContentTypeFor(ext))

	_, err = ImageExtension("notes.txt")
	assert.Error(t, err)
	assert.Equal(t, "application/octet-stream", ContentTypeFor("txt"))
}

func TestGCSPublicURL(t *testing.T) {
	assert.Equal(t,
		"https://storage.googleapis.com/vitrine-media/products/p1/1-a%20b.png",
		gcsPublicURL("vitrine-media", "/products/p1/1-a b.png"))
}

func TestLocalUploader(t *testing.T) {
	dir := t.TempDir()
	u, err := NewLocalUploader(dir, "http://localhost:8080/uploads/")
	require.NoError(t, err)

	url, err := u.Upload(context.Background(), "products/p1/a.png", "image/png", strings.NewReader("png"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/products/p1/a.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "products", "p1", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	_, err = u.Upload(context.Background(), "../../escape.png", "image/png", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "escape.png"))
	assert.NoError(t, err)

	require.NoError(t, u.Delete(context.Background(), "products/p1/a.png"))
	require.NoError(t, u.Delete(context.Background(), "products/p1/a.png"))

	_, err = u.Upload(context.Background(), " ", "", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func fileOf(name, content string) File {
	return File{Name: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewBufferString(content)), nil
	}}
}

func TestUploadImagesPartialSuccess(t *testing.T) {
	mem := NewMemoryUploader()
	mem.FailOn = func(p string) bool { return strings.HasSuffix(p, ".gif") }

	files := []File{
		fileOf("a.jpg", "a"),
		fileOf("b.gif", "b"),
		fileOf("c.txt", "c"),
		{Name: "d.png", Open: func() (io.ReadCloser, error) { return nil, errors.New("closed") }},
		fileOf("e.webp", "e"),
	}
	results := UploadImages(context.Background(), mem, "p1", files, func() time.Time { return fixedNow })

	require.Len(t, results, 5)
	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.True(t, results[2].Failed())
	assert.True(t, results[3].Failed())
	assert.False(t, results[4].Failed())
	assert.Equal(t, 2, mem.Len())
	assert.True(t, strings.HasPrefix(results[4].URL, "memory://products/p1/"))
}
