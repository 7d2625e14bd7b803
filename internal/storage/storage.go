package storage

import (
	"context"
	"errors"
	"fmt"
)

// ObjectStore moves whole files between local disk and a bucket keyed by
// object path. Implementations must overwrite existing objects on Upload
// (last-write-wins, required for backfill re-runs) and surface a
// *NotFoundError from Download when the object does not exist.
type ObjectStore interface {
	Upload(ctx context.Context, localPath, bucket, objectPath string) error
	Download(ctx context.Context, bucket, objectPath, localPath string) error
	Close() error
}

// NotFoundError reports a missing object. It is never retryable: a missing
// object means the producer has not completed for that partition.
type NotFoundError struct {
	Bucket string
	Object string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("object not found: %s/%s", e.Bucket, e.Object)
}

// IsNotFound reports whether err is (or wraps) a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Config selects and parameterizes a storage backend.
type Config struct {
	Type            string // FS, GCS or S3
	Region          string // S3 only
	LocalPath       string // FS only
	CredentialsFile string // optional GCS service account key
}

// New creates the appropriate object store based on config.
func New(ctx context.Context, cfg Config) (ObjectStore, error) {
	switch cfg.Type {
	case "FS":
		return NewLocalFSStore(cfg.LocalPath)
	case "GCS":
		return NewGCSStore(ctx, cfg.CredentialsFile)
	case "S3":
		return NewS3Store(ctx, cfg.Region)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
