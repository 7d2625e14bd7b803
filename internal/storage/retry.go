package storage

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// RetryPolicy bounds retries of transient store faults.
type RetryPolicy struct {
	MaxRetries uint64
	Delay      time.Duration
}

// retryingStore wraps an ObjectStore and retries transient faults with a
// constant backoff. Not-found errors are permanent and never retried.
type retryingStore struct {
	inner  ObjectStore
	policy RetryPolicy
}

// WithRetry wraps store so that Upload and Download retry transient faults
// according to policy.
func WithRetry(store ObjectStore, policy RetryPolicy) ObjectStore {
	return &retryingStore{inner: store, policy: policy}
}

func (r *retryingStore) retry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if IsNotFound(err) {
			return backoff.Permanent(err)
		}
		logrus.Warnf("storage %s attempt %d failed: %v", op, attempt, err)
		return err
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(r.policy.Delay), r.policy.MaxRetries)
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func (r *retryingStore) Upload(ctx context.Context, localPath, bucket, objectPath string) error {
	return r.retry(ctx, "upload", func() error {
		return r.inner.Upload(ctx, localPath, bucket, objectPath)
	})
}

func (r *retryingStore) Download(ctx context.Context, bucket, objectPath, localPath string) error {
	return r.retry(ctx, "download", func() error {
		return r.inner.Download(ctx, bucket, objectPath, localPath)
	})
}

func (r *retryingStore) Close() error {
	return r.inner.Close()
}
