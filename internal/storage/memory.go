package storage

import (
	"context"
	"errors"
	"io"
	"sync"
)

// MemoryUploader keeps objects in memory. FailOn makes uploads of matching
// paths fail.
type MemoryUploader struct {
	mu      sync.Mutex
	Objects map[string][]byte
	FailOn  func(objectPath string) bool
}

func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{Objects: make(map[string][]byte)}
}

func (m *MemoryUploader) Upload(_ context.Context, objectPath, _ string, body io.Reader) (string, error) {
	if objectPath == "" {
		return "", ErrEmptyPath
	}
	if m.FailOn != nil && m.FailOn(objectPath) {
		return "", errors.New("storage: upload rejected")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.Objects[objectPath] = data
	m.mu.Unlock()
	return m.PublicURL(objectPath), nil
}

func (m *MemoryUploader) Delete(_ context.Context, objectPath string) error {
	m.mu.Lock()
	delete(m.Objects, objectPath)
	m.mu.Unlock()
	return nil
}

func (m *MemoryUploader) PublicURL(objectPath string) string {
	return "memory://" + objectPath
}

// Len returns the number of stored objects.
func (m *MemoryUploader) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Objects)
}
