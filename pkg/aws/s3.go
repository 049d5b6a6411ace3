package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned by GetObject when the key does not exist.
var ErrObjectNotFound = errors.New("s3 object not found")

// NewS3Client creates a new S3 client from AWS config. Path-style addressing
// is required by LocalStack.
func NewS3Client(cfg sdkaws.Config, usePathStyle bool) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})
}

// S3Bucket is a thin wrapper around one bucket.
type S3Bucket struct {
	client *s3.Client
	bucket string
}

func NewS3Bucket(client *s3.Client, bucket string) *S3Bucket {
	return &S3Bucket{client: client, bucket: bucket}
}

func (b *S3Bucket) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        sdkaws.String(b.bucket),
		Key:           sdkaws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   sdkaws.String(contentType),
		ContentLength: sdkaws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

// GetObject returns the object body and its stored content type.
func (b *S3Bucket) GetObject(ctx context.Context, key string) ([]byte, string, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: sdkaws.String(b.bucket),
		Key:    sdkaws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, "", ErrObjectNotFound
		}
		return nil, "", fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, sdkaws.ToString(out.ContentType), nil
}

func (b *S3Bucket) DeleteObject(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: sdkaws.String(b.bucket),
		Key:    sdkaws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
