package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader mirrors archived PDFs to an S3-compatible bucket.
type Uploader struct {
	client *minio.Client
	bucket string
}

// NewUploader connects to an S3-compatible endpoint (MinIO, Ceph, AWS).
func NewUploader(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Uploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}
	return &Uploader{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the target bucket if it does not exist yet.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}

// Upload stores the PDF and returns its bucket-qualified path.
func (u *Uploader) Upload(ctx context.Context, name string, pdf []byte) (string, error) {
	_, err := u.client.PutObject(ctx, u.bucket, name, bytes.NewReader(pdf), int64(len(pdf)), minio.PutObjectOptions{
		ContentType: "application/pdf",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return u.bucket + "/" + name, nil
}
