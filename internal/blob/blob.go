// Package blob is the durable object storage for uploaded originals.
package blob

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrNotFound = errors.New("blob: object not found")

type Object struct {
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type Store interface {
	Get(ctx context.Context, key string) (*Object, error)
	Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error
}

// New picks the store for backendType. The GCS client is created by the caller
// so it can be closed on shutdown.
func New(backendType string, gcs GCSClient, bucket, dir string, log *zap.Logger) (Store, error) {
	switch backendType {
	case "gcs":
		if gcs == nil {
			return nil, errors.New("gcs blob store requires a client")
		}
		log.Info("Using GCS blob store", zap.String("bucket", bucket))
		return NewGCSStore(gcs, bucket), nil
	case "file":
		log.Info("Using file blob store", zap.String("dir", dir))
		return NewFileStore(dir)
	default:
		return nil, fmt.Errorf("unknown blob backend: %s (supported: gcs, file)", backendType)
	}
}
