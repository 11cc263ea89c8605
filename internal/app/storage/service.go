/*
Package storage provides the S3-compatible object store used for user avatars.
Uploads and downloads go through presigned URLs so image bytes never pass
through the API server.
*/
package storage

import (
	"context"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// AvatarStorage defines the public interface for the avatar storage service.
type AvatarStorage interface {
	// PresignUpload generates a pre-signed URL for uploading an avatar image.
	PresignUpload(
		ctx context.Context,
		key string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (string, error)

	// PresignDownload generates a pre-signed URL for downloading an avatar.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the avatar specified by the given key.
	Delete(ctx context.Context, key string) error

	// GetObjectMetadata retrieves the object's metadata.
	GetObjectMetadata(ctx context.Context, key string) (map[string]string, error)
}

// NewAvatarStorage is the factory function for AvatarStorage.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewAvatarStorage(cfg ServiceConfig) (AvatarStorage, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(cfg)
}
