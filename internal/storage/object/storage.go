package object

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aliskhannn/image-blur/internal/storage"
)

// Scheme is the locator scheme of objects, as in s3://bucket/key.
const Scheme = "s3"

// OutputPrefix is the key prefix blurred images are uploaded under.
const OutputPrefix = "blur_filter_outputs"

// encoder serializes a raster into bytes.
type encoder interface {
	Encode(w io.Writer, img image.Image) error
}

// Storage provides an S3-compatible storage backend using MinIO.
// It reads images from any bucket the credentials can access and uploads
// blurred outputs into a single bucket.
type Storage struct {
	client     *minio.Client
	bucketName string
	encoder    encoder
}

// NewStorage creates a new Storage instance connected to the specified MinIO server.
// If the output bucket does not exist, it will be created automatically.
func NewStorage(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, enc encoder) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: bucketName,
		encoder:    enc,
	}, nil
}

// Open retrieves the object identified by an s3:// locator and returns a reader.
func (s *Storage) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	bucket, key, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load object %s: %w", locator, err)
	}

	// GetObject is lazy; Stat surfaces missing objects before decoding starts.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("failed to load object %s: %w", locator, err)
	}

	return obj, nil
}

// Write encodes img and uploads it under a new unique key.
// Returns the s3:// locator of the uploaded object.
func (s *Storage) Write(ctx context.Context, img image.Image) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := s.encoder.Encode(buf, img); err != nil {
		return "", fmt.Errorf("failed to encode object: %w", err)
	}

	key := path.Join(OutputPrefix, fmt.Sprintf("blur-filter-output-%s.png", uuid.New()))

	_, err := s.client.PutObject(ctx, s.bucketName, key, buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "image/png",
	})
	if err != nil {
		return "", fmt.Errorf("failed to save object: %w", err)
	}

	return Locator(s.bucketName, key), nil
}

// Delete removes the object identified by locator.
func (s *Storage) Delete(ctx context.Context, locator string) error {
	bucket, key, err := ParseLocator(locator)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", locator, err)
	}

	return nil
}

// Locator returns the s3:// locator for key in bucket.
func Locator(bucket, key string) string {
	u := url.URL{Scheme: Scheme, Host: bucket, Path: "/" + strings.TrimPrefix(key, "/")}
	return u.String()
}

// ParseLocator splits an s3://bucket/key locator into bucket and key.
func ParseLocator(locator string) (bucket, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", storage.ErrInvalidLocator, err)
	}
	if !strings.EqualFold(u.Scheme, Scheme) {
		return "", "", fmt.Errorf("%w: %q", storage.ErrUnsupportedLocator, u.Scheme)
	}

	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: want s3://bucket/key, got %q", storage.ErrInvalidLocator, locator)
	}

	return u.Host, key, nil
}
