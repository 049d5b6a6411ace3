package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	aws_pkg "github.com/ShyamsaranRajendran/Natures-Craze-shop-sub000/pkg/aws"
)

const MaxImageSize = 5 << 20

var (
	ErrImageNotFound    = errors.New("image not found")
	ErrImageTooLarge    = errors.New("image exceeds 5 MB")
	ErrImageEmpty       = errors.New("image is empty")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// ImageStore keeps product image blobs next to their content type.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

type objectStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, string, error)
	DeleteObject(ctx context.Context, key string) error
}

// S3ImageStore implements ImageStore on an S3 bucket.
type S3ImageStore struct {
	bucket objectStore
}

func NewS3ImageStore(bucket *aws_pkg.S3Bucket) *S3ImageStore {
	return &S3ImageStore{bucket: bucket}
}

func (s *S3ImageStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := s.bucket.PutObject(ctx, key, data, contentType); err != nil {
		return fmt.Errorf("store image %s: %w", key, err)
	}
	return nil
}

func (s *S3ImageStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	data, contentType, err := s.bucket.GetObject(ctx, key)
	if err != nil {
		if errors.Is(err, aws_pkg.ErrObjectNotFound) {
			return nil, "", ErrImageNotFound
		}
		return nil, "", fmt.Errorf("load image %s: %w", key, err)
	}
	return data, contentType, nil
}

func (s *S3ImageStore) Delete(ctx context.Context, key string) error {
	return s.bucket.DeleteObject(ctx, key)
}

// ImageKey returns a fresh object key for a product image.
func ImageKey(productID int64) string {
	return fmt.Sprintf("products/%d/%s", productID, uuid.NewString())
}

// DetectImageType checks size and sniffs the content type. A declared type
// must agree with the sniffed one.
func DetectImageType(data []byte, declared string) (string, error) {
	if len(data) == 0 {
		return "", ErrImageEmpty
	}
	if len(data) > MaxImageSize {
		return "", ErrImageTooLarge
	}

	sniffed := http.DetectContentType(data)
	if !allowedTypes[sniffed] {
		return "", ErrUnsupportedImage
	}

	if declared != "" {
		declared = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
		if declared != sniffed && declared != "application/octet-stream" {
			return "", ErrUnsupportedImage
		}
	}
	return sniffed, nil
}
