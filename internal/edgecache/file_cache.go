package edgecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// FileCache stores msgpack-encoded responses on disk.
// Structure: {cacheDir}/{sha[0:2]}/{sha}.msgpack where sha is sha256(key)
type FileCache struct {
	cacheDir string
}

func NewFileCache(cacheDir string) (*FileCache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &FileCache{
		cacheDir: cacheDir,
	}, nil
}

func (c *FileCache) buildFilePath(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(c.cacheDir, name[:2], name+".msgpack")
}

func (c *FileCache) Match(ctx context.Context, key string) (*CachedResponse, bool) {
	data, err := os.ReadFile(c.buildFilePath(key))
	if err != nil {
		return nil, false
	}

	var resp CachedResponse
	if err := msgpack.Unmarshal(data, &resp); err != nil || resp.Key != key {
		return nil, false
	}
	return &resp, true
}

func (c *FileCache) Put(ctx context.Context, key string, resp *CachedResponse) error {
	value := resp.clone()
	value.Key = key

	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cached response: %w", err)
	}

	filePath := c.buildFilePath(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// Write atomically
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to rename cache entry: %w", err)
	}
	return nil
}
