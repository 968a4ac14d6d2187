package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// MemoryClient keeps objects in process. It backs local development when no
// bucket is configured.
type MemoryClient struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

// NewMemoryClient creates an empty in-process object store
func NewMemoryClient(baseURL string) *MemoryClient {
	return &MemoryClient{objects: make(map[string][]byte), baseURL: baseURL}
}

func (c *MemoryClient) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read object %s: %w", key, err)
	}
	c.mu.Lock()
	c.objects[key] = data
	c.mu.Unlock()
	return nil
}

func (c *MemoryClient) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.objects, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryClient) GetPresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	c.mu.RLock()
	_, ok := c.objects[key]
	c.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %s not found", key)
	}
	return c.baseURL + "/" + url.PathEscape(key), nil
}

// Object returns the stored bytes for key
func (c *MemoryClient) Object(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.objects[key]
	return data, ok
}
