package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps objects on local disk. Content type and metadata live in a
// JSON sidecar next to the object.
// Structure: {dir}/{key} and {dir}/{key}.meta.json
type FileStore struct {
	dir string
}

type fileMeta struct {
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *FileStore) Get(ctx context.Context, key string) (*Object, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}

	obj := &Object{Data: data}
	if raw, err := os.ReadFile(p + ".meta.json"); err == nil {
		var meta fileMeta
		if json.Unmarshal(raw, &meta) == nil {
			obj.ContentType = meta.ContentType
			obj.Metadata = meta.Metadata
		}
	}
	return obj, nil
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	meta, err := json.Marshal(fileMeta{ContentType: contentType, Metadata: metadata})
	if err != nil {
		return err
	}
	if err := writeAtomic(p+".meta.json", meta); err != nil {
		return err
	}
	return writeAtomic(p, data)
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}
