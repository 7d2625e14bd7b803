package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// S3Store implements ObjectStore for Amazon S3.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
}

// NewS3Store creates an Amazon S3 backed object store. Credentials come from
// the standard AWS chain (environment, ~/.aws/credentials, IAM role).
func NewS3Store(ctx context.Context, region string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMode(aws.RetryModeStandard),
		awsconfig.WithRetryMaxAttempts(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 3
	})
	downloader := manager.NewDownloader(client)

	logrus.Debugf("S3Store initialized in region: %s", region)

	return &S3Store{
		client:     client,
		uploader:   uploader,
		downloader: downloader,
	}, nil
}

// Upload streams localPath into the bucket, replacing any existing object.
func (s *S3Store) Upload(ctx context.Context, localPath, bucket, objectPath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file %s: %w", localPath, err)
	}
	defer src.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(bucket),
		Key:          aws.String(objectPath),
		Body:         src,
		ContentType:  aws.String("application/octet-stream"),
		StorageClass: types.StorageClassStandard,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3 %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

// Download streams an object into localPath.
func (s *S3Store) Download(ctx context.Context, bucket, objectPath, localPath string) error {
	dst, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", localPath, err)
	}
	defer dst.Close()

	_, err = s.downloader.Download(ctx, dst, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			os.Remove(localPath)
			return &NotFoundError{Bucket: bucket, Object: objectPath}
		}
		return fmt.Errorf("failed to download from S3 %s/%s: %w", bucket, objectPath, err)
	}
	return nil
}

// Close implements ObjectStore. The S3 client has no connection to release.
func (s *S3Store) Close() error {
	return nil
}
