package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

type objectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// MinIOStore keeps images as objects in a MinIO bucket. Single PutObject
// calls are atomic, so no temp object is needed.
type MinIOStore struct {
	client     objectClient
	bucket     string
	presignTTL time.Duration
}

// NewMinIOStore constructs a store over client and bucket. A positive
// presignTTL enables PresignedURL.
func NewMinIOStore(client objectClient, bucket string, presignTTL time.Duration) *MinIOStore {
	return &MinIOStore{client: client, bucket: bucket, presignTTL: presignTTL}
}

func (s *MinIOStore) Save(ctx context.Context, data []byte, ext string) (string, error) {
	name, err := NewFilename(ext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: ContentType(name),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put object: %v", ErrStorageWrite, err)
	}
	return name, nil
}

func (s *MinIOStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !ValidFilename(name) {
		return nil, ErrInvalidFilename
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", name, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller writes headers.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, name)
		}
		return nil, fmt.Errorf("stat object %s: %w", name, err)
	}
	return obj, nil
}

func (s *MinIOStore) Remove(ctx context.Context, name string) error {
	if !ValidFilename(name) {
		return ErrInvalidFilename
	}
	// RemoveObject succeeds for absent keys, so check first to report the anomaly.
	if _, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("%w: %s", ErrFileMissing, name)
		}
		return fmt.Errorf("stat object %s: %w", name, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", name, err)
	}
	return nil
}

// PresignedURL returns a time-limited direct download URL for name, or ""
// when presigning is disabled.
func (s *MinIOStore) PresignedURL(ctx context.Context, name string) (string, error) {
	if s.presignTTL <= 0 {
		return "", nil
	}
	if !ValidFilename(name) {
		return "", ErrInvalidFilename
	}
	params := make(url.Values)
	params.Set("response-content-type", ContentType(name))

	u, err := s.client.PresignedGetObject(ctx, s.bucket, name, s.presignTTL, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", name, err)
	}
	return u.String(), nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
