package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"

	"github.com/dtroode/gophdate-session/internal/model"
)

const objectName = "credentials.json"

// Internal adapter interface to enable mocking without a real MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Wrapper to adapt *minio.Client to minioAPI.
type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}
func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}
func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}
func (w minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := w.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}
func (w minioClientWrapper) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return w.c.RemoveObject(ctx, bucketName, objectName, opts)
}

// storedRecord is the JSON layout of the credentials object.
type storedRecord struct {
	AuthToken    string `json:"authToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         string `json:"user,omitempty"`
	UserID       string `json:"userId,omitempty"`
}

var _ model.Backing = (*Backing)(nil)

// Backing stores the credential record as a single JSON object.
type Backing struct {
	api    minioAPI
	bucket string
	key    string
}

// NewBacking creates a backing over a real *minio.Client.
func NewBacking(ctx context.Context, client *minio.Client, bucket, namespace string) (*Backing, error) {
	return NewBackingWithAPI(ctx, minioClientWrapper{c: client}, bucket, namespace)
}

// NewBackingWithAPI allows injecting a mockable API (used in tests).
func NewBackingWithAPI(ctx context.Context, api minioAPI, bucket, namespace string) (*Backing, error) {
	b := &Backing{
		api:    api,
		bucket: bucket,
		key:    path.Join(namespace, objectName),
	}

	if err := b.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return b, nil
}

func (b *Backing) ensureBucketExists(ctx context.Context) error {
	exists, err := b.api.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := b.api.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Name returns the backing name.
func (b *Backing) Name() string {
	return "minio"
}

// Read downloads and decodes the credentials object. A missing object
// yields an empty record.
func (b *Backing) Read(ctx context.Context) (model.Record, error) {
	obj, err := b.api.GetObject(ctx, b.bucket, b.key, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return model.Record{}, nil
		}
		return model.Record{}, fmt.Errorf("failed to get credentials object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return model.Record{}, nil
		}
		return model.Record{}, fmt.Errorf("failed to read credentials object: %w", err)
	}

	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return model.Record{}, fmt.Errorf("failed to decode credentials object: %w", err)
	}

	return model.Record{
		AuthToken:    stored.AuthToken,
		RefreshToken: stored.RefreshToken,
		User:         stored.User,
		UserID:       stored.UserID,
	}, nil
}

// Write uploads the whole record as one object.
func (b *Backing) Write(ctx context.Context, record model.Record) error {
	data, err := json.Marshal(storedRecord{
		AuthToken:    record.AuthToken,
		RefreshToken: record.RefreshToken,
		User:         record.User,
		UserID:       record.UserID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode credentials object: %w", err)
	}

	_, err = b.api.PutObject(ctx, b.bucket, b.key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to upload credentials object: %w", err)
	}
	return nil
}

// Clear removes the credentials object.
func (b *Backing) Clear(ctx context.Context) error {
	err := b.api.RemoveObject(ctx, b.bucket, b.key, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("failed to delete credentials object: %w", err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
