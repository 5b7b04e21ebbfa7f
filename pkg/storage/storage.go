package storage

import (
	"context"
	"fmt"

	"github.com/casewire/casefile-processor/pkg/logger"
	"github.com/casewire/casefile-processor/pkg/storage/minio"
	"github.com/casewire/casefile-processor/pkg/storage/s3"
)

// StorageType selects the object storage backend.
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage is the object storage surface the pipeline needs: source bytes
// in, thumbnail bytes out. An empty bucket selects the configured default.
type Storage interface {
	// Download fetches an object's bytes.
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	// Upload writes an object with the given content type and returns a
	// retrieval URL. Re-uploading the same key overwrites (idempotent).
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
	// Delete removes an object.
	Delete(ctx context.Context, bucket, key string) error
}

// NewStorage is the backend factory.
func NewStorage(storageType StorageType, logger logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		return s3.GetClient(logger)
	case StorageTypeMinio:
		return minio.GetClient(logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
