package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	cfg "github.com/casewire/casefile-processor/config"
	"github.com/casewire/casefile-processor/pkg/logger"
)

type MinioStorage struct {
	client        *minio.Client
	bucketName    string
	publicBaseURL string
	logger        logger.Logger
}

// Download implements Storage.Download
func (m *MinioStorage) Download(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" {
		bucket = m.bucketName
	}

	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		m.logger.Error("Failed to get object from MinIO",
			logger.String("bucket", bucket),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		m.logger.Error("Failed to read object from MinIO",
			logger.String("bucket", bucket),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	return data, nil
}

// Upload implements Storage.Upload
func (m *MinioStorage) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if bucket == "" {
		bucket = m.bucketName
	}

	_, err := m.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		m.logger.Error("Failed to upload object to MinIO",
			logger.String("bucket", bucket),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return m.objectURL(bucket, key), nil
}

// Delete implements Storage.Delete
func (m *MinioStorage) Delete(ctx context.Context, bucket, key string) error {
	if bucket == "" {
		bucket = m.bucketName
	}

	err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		m.logger.Error("Failed to delete object from MinIO",
			logger.String("bucket", bucket),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

func (m *MinioStorage) objectURL(bucket, key string) string {
	if m.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(m.publicBaseURL, "/"), bucket, key)
	}
	return fmt.Sprintf("%s/%s/%s", m.client.EndpointURL().String(), bucket, key)
}

func NewMinioStorage(logger logger.Logger) (*MinioStorage, error) {
	minioConfig := cfg.GetMinioConfig()
	client, err := minio.New(minioConfig.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioConfig.AccessKey, minioConfig.SecretKey, ""),
		Secure: minioConfig.UseSSL,
		Region: minioConfig.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), minioConfig.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(context.Background(), minioConfig.BucketName, minio.MakeBucketOptions{
			Region: minioConfig.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:        client,
		bucketName:    minioConfig.BucketName,
		publicBaseURL: minioConfig.PublicBaseURL,
		logger:        logger,
	}, nil
}

func GetClient(logger logger.Logger) (*MinioStorage, error) {
	return NewMinioStorage(logger)
}
