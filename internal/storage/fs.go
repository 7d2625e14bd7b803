package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LocalFSStore implements ObjectStore on a local directory, laid out as
// <basePath>/<bucket>/<objectPath>. Used for development and tests.
type LocalFSStore struct {
	basePath string
}

// NewLocalFSStore creates a local filesystem object store rooted at basePath.
func NewLocalFSStore(basePath string) (*LocalFSStore, error) {
	if basePath == "~" || len(basePath) > 1 && basePath[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		basePath = filepath.Join(home, basePath[2:])
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	logrus.Debugf("LocalFSStore initialized with path: %s", absPath)

	return &LocalFSStore{basePath: absPath}, nil
}

func (s *LocalFSStore) objectFile(bucket, objectPath string) (string, error) {
	cleanKey := filepath.Clean(objectPath)
	if filepath.IsAbs(cleanKey) {
		return "", fmt.Errorf("absolute paths not allowed in object path: %s", objectPath)
	}

	fullPath := filepath.Join(s.basePath, bucket, cleanKey)

	// Ensure the object stays within the bucket directory.
	rel, err := filepath.Rel(filepath.Join(s.basePath, bucket), fullPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid object path: %s", objectPath)
	}
	return fullPath, nil
}

// Upload copies localPath into the store. The write is atomic: data goes to
// a temporary file first and is renamed into place, so a concurrent Download
// never observes a half-written object.
func (s *LocalFSStore) Upload(ctx context.Context, localPath, bucket, objectPath string) error {
	fullPath, err := s.objectFile(bucket, objectPath)
	if err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file %s: %w", localPath, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(fullPath), err)
	}

	tmpFile := fmt.Sprintf("%s.tmp.%d", fullPath, time.Now().UnixNano())
	dst, err := os.OpenFile(tmpFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	dst.Sync()
	if err := dst.Close(); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tmpFile, fullPath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	logrus.Debugf("LocalFSStore: wrote %s/%s", bucket, objectPath)
	return nil
}

// Download copies an object out of the store into localPath.
func (s *LocalFSStore) Download(ctx context.Context, bucket, objectPath, localPath string) error {
	fullPath, err := s.objectFile(bucket, objectPath)
	if err != nil {
		return err
	}

	src, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{Bucket: bucket, Object: objectPath}
		}
		return fmt.Errorf("failed to open object %s/%s: %w", bucket, objectPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write local file %s: %w", localPath, err)
	}
	return dst.Close()
}

// Close implements ObjectStore. Nothing to close for the local filesystem.
func (s *LocalFSStore) Close() error {
	return nil
}
