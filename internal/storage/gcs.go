package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GCSStore implements ObjectStore for Google Cloud Storage.
type GCSStore struct {
	client *gcs.Client
}

// NewGCSStore creates a Google Cloud Storage backed object store.
// With an empty credentialsFile the client falls back to application
// default credentials (GOOGLE_APPLICATION_CREDENTIALS, gcloud auth, or the
// GCE metadata service).
func NewGCSStore(ctx context.Context, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logrus.Debug("GCSStore initialized")
	return &GCSStore{client: client}, nil
}

// Upload streams localPath into the bucket, replacing any existing object.
func (s *GCSStore) Upload(ctx context.Context, localPath, bucket, objectPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file %s: %w", localPath, err)
	}
	defer src.Close()

	obj := s.client.Bucket(bucket).Object(objectPath)
	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.CacheControl = "no-cache, max-age=0"

	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return fmt.Errorf("failed to write to GCS object %s: %w", objectPath, err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", objectPath, err)
	}
	return nil
}

// Download streams an object into localPath.
func (s *GCSStore) Download(ctx context.Context, bucket, objectPath, localPath string) error {
	obj := s.client.Bucket(bucket).Object(objectPath)
	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return &NotFoundError{Bucket: bucket, Object: objectPath}
		}
		return fmt.Errorf("failed to open GCS object %s/%s: %w", bucket, objectPath, err)
	}
	defer r.Close()

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return fmt.Errorf("failed to read GCS object %s/%s: %w", bucket, objectPath, err)
	}
	return dst.Close()
}

// Close implements ObjectStore.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
