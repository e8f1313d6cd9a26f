package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSClient and the handle interfaces below narrow *storage.Client to what the
// store uses, so it can be exercised without a bucket.
type GCSClient interface {
	Bucket(name string) GCSBucketHandle
}

type GCSBucketHandle interface {
	Object(name string) GCSObjectHandle
}

type GCSObjectHandle interface {
	NewWriter(ctx context.Context, contentType string, metadata map[string]string) io.WriteCloser
	NewReader(ctx context.Context) (GCSReader, error)
}

type GCSReader interface {
	io.ReadCloser
	ContentType() string
}

type gcsClientAdapter struct {
	client *storage.Client
}

func NewGCSClientAdapter(client *storage.Client) GCSClient {
	if client == nil {
		return nil
	}
	return &gcsClientAdapter{client: client}
}

func (a *gcsClientAdapter) Bucket(name string) GCSBucketHandle {
	return &gcsBucketHandleAdapter{handle: a.client.Bucket(name)}
}

type gcsBucketHandleAdapter struct {
	handle *storage.BucketHandle
}

func (a *gcsBucketHandleAdapter) Object(name string) GCSObjectHandle {
	return &gcsObjectHandleAdapter{handle: a.handle.Object(name)}
}

type gcsObjectHandleAdapter struct {
	handle *storage.ObjectHandle
}

func (a *gcsObjectHandleAdapter) NewWriter(ctx context.Context, contentType string, metadata map[string]string) io.WriteCloser {
	w := a.handle.NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = metadata
	return w
}

func (a *gcsObjectHandleAdapter) NewReader(ctx context.Context) (GCSReader, error) {
	r, err := a.handle.NewReader(ctx)
	if err != nil {
		return nil, err
	}
	return gcsReaderAdapter{r}, nil
}

type gcsReaderAdapter struct {
	*storage.Reader
}

func (r gcsReaderAdapter) ContentType() string { return r.Attrs.ContentType }

type GCSStore struct {
	bucket GCSBucketHandle
}

func NewGCSStore(client GCSClient, bucket string) *GCSStore {
	return &GCSStore{bucket: client.Bucket(bucket)}
}

func (s *GCSStore) Get(ctx context.Context, key string) (*Object, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open gcs object %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gcs object %s: %w", key, err)
	}
	return &Object{Data: data, ContentType: r.ContentType()}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	w := s.bucket.Object(key).NewWriter(ctx, contentType, metadata)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write gcs object %s: %w", key, err)
	}
	// The upload is only committed by Close.
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to commit gcs object %s: %w", key, err)
	}
	return nil
}
