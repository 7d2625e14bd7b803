package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chainlode/ethexport/internal/partition"
	"github.com/chainlode/ethexport/internal/storage"
)

// TransferError reports a failed artifact upload or download.
type TransferError struct {
	Op     string // "publish" or "fetch"
	Kind   partition.Kind
	Object string
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Object, e.Kind, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the transfer failed because the remote object does
// not exist. For a fetch this means the producing step has not completed for
// that date; it is fatal for the run, not retryable.
func (e *TransferError) NotFound() bool {
	return storage.IsNotFound(e.Err)
}

// Transfer moves artifacts between a workspace and the partitioned object
// store layout. The store client is injected, never global.
type Transfer struct {
	store  storage.ObjectStore
	bucket string
}

// NewTransfer creates a Transfer writing to the given bucket.
func NewTransfer(store storage.ObjectStore, bucket string) *Transfer {
	return &Transfer{store: store, bucket: bucket}
}

// Publish uploads localFile to the partition for (kind, date), keeping the
// file's base name. An existing object at that path is overwritten, which is
// what makes re-runs and backfills idempotent.
func (t *Transfer) Publish(ctx context.Context, localFile string, kind partition.Kind, date time.Time) error {
	object := partition.ExportPath(kind, date) + filepath.Base(localFile)

	if _, err := os.Stat(localFile); err != nil {
		return &TransferError{Op: "publish", Kind: kind, Object: object, Err: err}
	}

	if err := t.store.Upload(ctx, localFile, t.bucket, object); err != nil {
		return &TransferError{Op: "publish", Kind: kind, Object: object, Err: err}
	}

	logrus.Infof("published %s to %s/%s", filepath.Base(localFile), t.bucket, object)
	return nil
}

// Fetch downloads the object named by localFile's base name from the
// partition for (kind, date) into localFile.
func (t *Transfer) Fetch(ctx context.Context, kind partition.Kind, date time.Time, localFile string) error {
	object := partition.ExportPath(kind, date) + filepath.Base(localFile)

	if err := t.store.Download(ctx, t.bucket, object, localFile); err != nil {
		return &TransferError{Op: "fetch", Kind: kind, Object: object, Err: err}
	}

	logrus.Infof("fetched %s/%s", t.bucket, object)
	return nil
}
