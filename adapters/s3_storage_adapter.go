package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3StorageAdapter.
// *s3.Client satisfies it.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3StorageAdapter stores each key as an object under Prefix in Bucket.
type S3StorageAdapter struct {
	client  S3API
	bucket  string
	prefix  string
	timeout time.Duration
}

var _ StorageAdapter = (*S3StorageAdapter)(nil)

// NewS3StorageAdapter creates an adapter writing to bucket. A zero timeout
// defaults to 10 seconds per operation.
func NewS3StorageAdapter(client S3API, bucket, prefix string, timeout time.Duration) *S3StorageAdapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &S3StorageAdapter{client: client, bucket: bucket, prefix: prefix, timeout: timeout}
}

func (a *S3StorageAdapter) objectKey(key string) *string {
	return aws.String(a.prefix + key)
}

// Set implements StorageAdapter.
func (a *S3StorageAdapter) Set(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         a.objectKey(key),
		Body:        bytes.NewReader(value),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %q: %w", key, err)
	}
	return nil
}

// Get implements StorageAdapter.
func (a *S3StorageAdapter) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    a.objectKey(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("s3 get %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %q: %w", key, err)
	}
	return data, nil
}

// Delete implements StorageAdapter.
func (a *S3StorageAdapter) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    a.objectKey(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %q: %w", key, err)
	}
	return nil
}

// Close does nothing; the S3 client owns no closable resources.
func (a *S3StorageAdapter) Close() error {
	return nil
}
