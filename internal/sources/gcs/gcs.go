package gcs

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"

	"ccdash/internal/config"
	"ccdash/internal/sources"
)

// Reader loads the dataset CSV from a Cloud Storage object.
type Reader struct {
	client *storage.Client
	bucket string
	object string
}

var _ sources.RowReader = (*Reader)(nil)

// New opens a storage client using application default credentials for
// a gs://bucket/object path.
func New(ctx context.Context, path string) (*Reader, error) {
	bucket, object, err := config.SplitGCSPath(path)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Reader{client: client, bucket: bucket, object: object}, nil
}

// Describe implements sources.Describer.
func (r *Reader) Describe() string {
	return fmt.Sprintf("gs://%s/%s", r.bucket, r.object)
}

// ReadRows implements sources.RowReader.
func (r *Reader) ReadRows(ctx context.Context) ([][]string, error) {
	obj := r.client.Bucket(r.bucket).Object(r.object)

	rd, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("%w: %s", sources.ErrNotFound, r.Describe())
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer rd.Close()

	return sources.DecodeCSV(rd)
}

// Close releases the storage client.
func (r *Reader) Close() error {
	return r.client.Close()
}
