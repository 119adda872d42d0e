package cache

import (
	"time"

	"github.com/hashicorp/go-multierror"
)

// LayeredCache checks memory before disk and promotes disk hits
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a memory cache backed by a disk cache in diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

// Get retrieves a vector, checking memory first
func (c *LayeredCache) Get(key string) ([]float32, bool) {
	if vector, found := c.memory.Get(key); found {
		return vector, true
	}

	if vector, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, vector, 0)
		return vector, true
	}

	return nil, false
}

// Set stores a vector in both layers
func (c *LayeredCache) Set(key string, vector []float32, ttl time.Duration) error {
	var result *multierror.Error
	if err := c.memory.Set(key, vector, ttl); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.disk.Set(key, vector, ttl); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Delete removes a vector from both layers
func (c *LayeredCache) Delete(key string) error {
	var result *multierror.Error
	if err := c.memory.Delete(key); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.disk.Delete(key); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Clear empties both layers
func (c *LayeredCache) Clear() error {
	var result *multierror.Error
	if err := c.memory.Clear(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.disk.Clear(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
