package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader writes objects below a directory served at baseURL.
type LocalUploader struct {
	dir     string
	baseURL string
}

func NewLocalUploader(dir, baseURL string) (*LocalUploader, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: local directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &LocalUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the root directory objects are written under.
func (u *LocalUploader) Dir() string {
	return u.dir
}

func (u *LocalUploader) Upload(_ context.Context, objectPath, _ string, body io.Reader) (string, error) {
	target, err := u.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(target)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return u.PublicURL(objectPath), nil
}

func (u *LocalUploader) Delete(_ context.Context, objectPath string) error {
	target, err := u.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (u *LocalUploader) PublicURL(objectPath string) string {
	return u.baseURL + "/" + strings.TrimLeft(objectPath, "/")
}

func (u *LocalUploader) resolve(objectPath string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(objectPath))
	if clean == "/" {
		return "", ErrEmptyPath
	}
	return filepath.Join(u.dir, filepath.FromSlash(clean)), nil
}
